/*
Package sigweb talks to the Topaz SigWeb REST host, directly or through the
local HTTPS bridge.

The package has four parts:

  - base URL policy (SelectBaseURL): which address a client on a given page
    origin must use so the browser neither blocks the call as mixed content
    nor trips Private Network Access;
  - capabilities: one small interface per tablet operation, so a device that
    lacks an operation is reported as a *CapabilityError instead of a crash;
  - Client: the REST implementation of those capabilities;
  - the error taxonomy and HelpfulMessage, which turns any failure into the
    text shown to an operator.

Responses from SigWeb are plain text and sometimes quoted; NormalizeText
strips one layer of quotes.
*/
package sigweb
