// Package flexlog is a high-throughput asynchronous logging library.
// Application goroutines produce records at low latency; a pool of workers
// formats them and dispatches them to sinks (console, rotating files,
// memory capture, NATS).
//
// The pipeline is built from a recycling message pool, per-worker priority
// queues, a lock-free logger registry, and copy-on-write sink lists backed
// by a hazard-pointer reclamation domain.
//
// Basic usage:
//
//	if err := flexlog.Initialize(); err != nil {
//		panic(err)
//	}
//	defer flexlog.Shutdown(true, 5*time.Second)
//
//	log, _ := flexlog.GetLogger("api")
//	log.Infof("listening on %s", addr)
//
// Records are dispatched asynchronously and may be dropped under pool
// exhaustion or backpressure; drops are counted per logger.
package flexlog
