package sealedcontent

// UploadRequest contains the parameters for storing a new object
type UploadRequest struct {
	FileName    string
	ContentType string
	Data        []byte
	// WithoutDeleteKey skips issuing a delete capability
	WithoutDeleteKey bool
}

// UploadResult is returned once per upload. Key and DeleteCapability are not
// recoverable afterwards.
type UploadResult struct {
	ObjectID         string `json:"object_id"`
	Key              string `json:"-"`
	DeleteCapability string `json:"-"`
	FileURL          string `json:"file_url"`
	DeleteURL        string `json:"delete_url,omitempty"`
}

// FetchRequest carries the capabilities presented for one retrieval
type FetchRequest struct {
	ObjectID  string
	Key       string
	DeleteKey string
	// HasDeleteKey marks a delete capability that was supplied, even if empty
	HasDeleteKey bool
}

// FetchResult is either the decrypted content or, when a valid delete
// capability was redeemed, a deletion acknowledgement with Data nil.
type FetchResult struct {
	Object  *Object
	Data    []byte
	Deleted bool
}

// RegisterRequest contains the parameters for creating an account
type RegisterRequest struct {
	Username  string
	Password  string
	Privilege int
}
