/*
Package capture sequences SigWeb calls into the operator actions of the
signature pad: start, stop, close, clear, save, status refresh, device info,
stroke statistics and SigString export/import.

Every action takes a State and returns the next one. Actions never return
errors; a failure is stored in State.LastError as operator-facing text and
the rest of the state stays usable.

	ctrl := capture.NewController(client,
		capture.WithPage(pageURL),
		capture.WithImageHandler(func(img capture.Image) { ... }),
	)
	st := ctrl.Start(ctx, capture.State{})
	st = ctrl.Save(ctx, st)
*/
package capture
