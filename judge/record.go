package judge

// Verdict classifies what a submission result page currently shows.
type Verdict int

const (
	// VerdictNotReady means the page does not show a definitive result yet.
	VerdictNotReady Verdict = iota
	// VerdictAccepted means the judge accepted the submission.
	VerdictAccepted
	// VerdictRejected means the judge returned any definitive non-accepted
	// outcome (wrong answer, time limit exceeded, ...).
	VerdictRejected
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "accepted"
	case VerdictRejected:
		return "rejected"
	default:
		return "not ready"
	}
}

// SubmissionRecord is the structured result of scraping one accepted
// submission. It is built once per detected accept and discarded after the
// publish attempt; it is never persisted.
type SubmissionRecord struct {
	ProblemID          string
	ProblemName        string
	ProblemURL         string
	ProblemDescription string
	SubmissionURL      string
	SubmittedCode      string
}

// Publishable reports whether the record carries enough identity and content
// to be written to a repository.
func (r *SubmissionRecord) Publishable() bool {
	return r.ProblemID != "" && r.ProblemName != "" && r.SubmittedCode != ""
}
