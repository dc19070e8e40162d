// Package orchestrator drives incidents through the fixed phase sequence
// Detection -> Diagnosis -> Prediction -> Resolution (-> Verification),
// invoking one external agent callback per phase and broadcasting every
// state transition through the event publisher.
package orchestrator
