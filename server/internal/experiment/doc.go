// Package experiment runs the trial scheduler of the temporal-predictability
// reaction-time task.
//
// A Machine alternates between an intertrial wait and an active trial. The
// host drives it with Tick on every render frame and with HandleKey (or
// OnResponse) when input arrives. HandleKeyAt takes a press the client timed
// itself, so the reaction time does not include transport delay. Both must be delivered one at a time; the
// Machine does no locking of its own. services.SessionRunner provides that
// serialization for the HTTP server.
//
// Conditions run in a fixed order (predictable, semi-predictable,
// unpredictable). Each trial produces exactly one models.TrialResult, which
// the Recorder appends to its log and hands to a Forwarder for telemetry.
package experiment
