package models

// DisplayState is the single user-visible state projected from the
// transcript/summary record pair for one (episode, level).
const (
	DisplayNotReady     = "not_ready"
	DisplayTranscribing = "transcribing"
	DisplaySummarizing  = "summarizing"
	DisplayReady        = "ready"
	DisplayFailed       = "failed"
)

// DeriveDisplayState merges a transcript status and a summary status into one
// display state. Precedence is defined here and nowhere else:
//
//	summary ready            -> ready
//	summary or transcript failed -> failed
//	summary summarizing      -> summarizing
//	summary queued, transcript ready -> summarizing (handoff gap)
//	transcript queued/transcribing   -> transcribing
//	otherwise                -> not_ready
//
// A transcript still in queued status is shown as transcribing. The pipeline
// writes transcribing directly on submission, so queued only ever appears
// transiently and never reaches users as its own state.
//
// Either status may be empty, meaning the corresponding record does not exist.
func DeriveDisplayState(transcriptStatus, summaryStatus string) string {
	switch summaryStatus {
	case SummaryStatusReady:
		return DisplayReady
	case SummaryStatusFailed:
		return DisplayFailed
	}

	if transcriptStatus == TranscriptStatusFailed {
		return DisplayFailed
	}

	if summaryStatus == SummaryStatusSummarizing {
		return DisplaySummarizing
	}
	if summaryStatus == SummaryStatusQueued && transcriptStatus == TranscriptStatusReady {
		return DisplaySummarizing
	}

	switch transcriptStatus {
	case TranscriptStatusQueued, TranscriptStatusTranscribing:
		return DisplayTranscribing
	}

	return DisplayNotReady
}
