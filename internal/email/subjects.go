package email

const (
	subjectStuckDigestFmt       = "%d contact(s) need attention in your outreach sequence"
	subjectSequenceCompletedFmt = "Sequence finished for %s"
)
