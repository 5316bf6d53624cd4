// Package predict estimates connector wait times from rolling session
// telemetry. The model is a deterministic statistical one over bounded
// history, not a trained model requiring offline fitting.
package predict
