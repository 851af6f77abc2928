package http

import (
	"bytes"
	"html/template"
	"net/http"
)

var statusTemplate = template.Must(template.New("status").Parse(`<!doctype html>
<html lang="en">
	<head>
		<meta charset="utf-8" />
		<meta name="viewport" content="width=device-width, initial-scale=1" />
		<title>Topaz Demo Bridge</title>
		<style>
			body { font-family: system-ui, -apple-system, Segoe UI, Roboto, Arial, sans-serif; padding: 24px; }
			code { font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", "Courier New", monospace; }
			.card { max-width: 820px; border: 1px solid #ddd; border-radius: 12px; padding: 16px 18px; }
			a { color: #0b57d0; }
			ul { margin: 8px 0 0; }
		</style>
	</head>
	<body>
		<div class="card">
			<h1 style="margin: 0 0 8px">Topaz Demo Local HTTPS Bridge</h1>
			<div>Proxy target: <code>{{.Target}}</code></div>
			<div>Proxy prefix: <code>{{.Prefix}}</code></div>
			<ul>
				<li><a href="/health">/health</a> (should return <code>ok</code>)</li>
				<li><a href="{{.Prefix}}/version">{{.Prefix}}/version</a> (proxied SigWeb version)</li>
			</ul>
			<p style="margin: 12px 0 0">
				If you see a certificate warning, approve it once so the deployed demo can call <code>{{.BridgeURL}}</code>.
			</p>
		</div>
	</body>
</html>
`))

// newStatusPage renders the page once; its inputs never change at runtime.
func newStatusPage(target, bridgeURL string) (http.Handler, error) {
	if bridgeURL == "" {
		bridgeURL = "https://localhost:9443"
	}

	var buf bytes.Buffer
	err := statusTemplate.Execute(&buf, struct {
		Target    string
		Prefix    string
		BridgeURL string
	}{target, ProxyPrefix, bridgeURL})
	if err != nil {
		return nil, err
	}
	page := buf.Bytes()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write(page)
		}
	}), nil
}
