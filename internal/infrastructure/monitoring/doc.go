/*
Package monitoring collects Prometheus metrics for the bridge.

Metrics are opt-in (METRICS_ENABLED). When enabled the bridge counts served
requests by route, forwarded requests by upstream status, upstream transport
failures, rate-limit rejections and where the TLS certificate came from.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics)
	// ... forward the request ...
	timer.Stop(resp.StatusCode)
*/
package monitoring
