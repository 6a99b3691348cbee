// Package metrics exports queue manager events to Prometheus.
//
//	rec, err := metrics.NewRecorder(prometheus.DefaultRegisterer, "voice")
//	if err != nil {
//		return err
//	}
//	m, err := queue.NewManager(cfg, queue.WithRecorder(rec))
package metrics
