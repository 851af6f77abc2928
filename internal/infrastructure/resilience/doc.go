/*
Package resilience provides a circuit breaker for calls to the tablet host.

When SigWeb is not running every call fails after a connect attempt; the
breaker turns a run of transport failures into an immediate ErrCircuitOpen
until a cooldown passes, then lets a probe through.

# Usage

	breaker := resilience.New("sigweb", resilience.Settings{
		Cooldown: 5 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsFailure: func(err error) bool {
			var transport *sigweb.TransportError
			return errors.As(err, &transport)
		},
	})

	err := breaker.Execute(func() error {
		return client.Call()
	})

# States

	Closed --[ReadyToTrip]-> Open --[Cooldown]-> Half-Open --[probes succeed]-> Closed
	                                                 |
	                                            [failure]
	                                                 v
	                                               Open
*/
package resilience
