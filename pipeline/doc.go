// Package pipeline chains packet transforms into the ordered processing
// path every RTP packet takes in and out of a media session.
//
// A Transformer is one stage: SRTP protection, FlexFEC, duplicate
// suppression, reorder buffering. Transform handles egress, ReverseTransform
// ingress; either may return nil to silently drop the packet, which is a
// normal outcome and never an error. A Pipeline is nothing more than an
// ordered stage list; egress and ingress pipelines are built separately
// because their stage orders differ:
//
//	egress := pipeline.New(fecStage, srtpStage)
//	ingress := pipeline.New(dedupStage, srtpStage, fecStage, bufferStage)
//
//	if out := ingress.ReverseTransform(pkt); out != nil {
//	    deliver(out)
//	}
//
// Stages must tolerate concurrent invocation across different SSRCs and
// serialize their own per-SSRC state; the pipeline adds no locking of its
// own. Closing a pipeline closes each of its stages; both operations are
// idempotent, so a stage shared between the egress and ingress pipelines
// is safe.
package pipeline
