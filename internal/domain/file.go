package domain

// FilePurpose enumerates the recognised purposes for an uploaded file,
// per spec §6's multipart upload body.
type FilePurpose string

const (
	FilePurposeAssistants FilePurpose = "assistants"
	FilePurposeBatch      FilePurpose = "batch"
	FilePurposeFineTune   FilePurpose = "fine_tune"
	FilePurposeVision     FilePurpose = "vision"
	FilePurposeUserData   FilePurpose = "user_data"
	FilePurposeEvals      FilePurpose = "evals"
)

// RecognisedFilePurposes is the closed set accepted by POST /v1/files.
var RecognisedFilePurposes = map[FilePurpose]bool{
	FilePurposeAssistants: true,
	FilePurposeBatch:      true,
	FilePurposeFineTune:   true,
	FilePurposeVision:     true,
	FilePurposeUserData:   true,
	FilePurposeEvals:      true,
}

// File is the metadata record for one uploaded file, per spec §6's file
// CRUD surface.
type File struct {
	ID        string      `json:"id"`
	Object    string      `json:"object"`
	Bytes     int64       `json:"bytes"`
	CreatedAt int64       `json:"created_at"`
	Filename  string      `json:"filename"`
	Purpose   FilePurpose `json:"purpose"`
}
