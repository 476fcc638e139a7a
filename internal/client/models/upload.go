package models

// UploadJob describes one attachment send. It lives only while the send is in
// progress and is never persisted.
type UploadJob struct {
	FileName    string
	ContentType string
	Kind        MediaKind
	SizeBytes   int64
	Valid       bool
	Err         error
}
