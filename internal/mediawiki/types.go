package mediawiki

// Result values reported by the Action API.
const (
	ResultSuccess   = "Success"
	ResultNeedToken = "NeedToken"
	ResultWarning   = "Warning"
)

type tokensResponse struct {
	Query struct {
		Tokens struct {
			LoginToken string `json:"logintoken"`
			CSRFToken  string `json:"csrftoken"`
		} `json:"tokens"`
	} `json:"query"`
	Error *APIError `json:"error,omitempty"`
}

type loginResponse struct {
	Login *struct {
		Result     string `json:"result"`
		Reason     string `json:"reason,omitempty"`
		LgUserID   int    `json:"lguserid,omitempty"`
		LgUserName string `json:"lgusername,omitempty"`
	} `json:"login,omitempty"`
	Error *APIError `json:"error,omitempty"`
}

type uploadResponse struct {
	Upload *struct {
		Result   string                 `json:"result"`
		Filename string                 `json:"filename,omitempty"`
		Warnings map[string]interface{} `json:"warnings,omitempty"`
	} `json:"upload,omitempty"`
	Error *APIError `json:"error,omitempty"`
}

// UploadParams are the fields of one action=upload request.
type UploadParams struct {
	// Filename is the target name on the wiki (without the File: prefix).
	Filename string
	// Comment is the edit summary.
	Comment string
	// Text is the initial page text of the file description page.
	Text string
	// Token is the CSRF token.
	Token string
	// Data is the whole file content.
	Data []byte
}

// UploadResult describes a successful upload.
type UploadResult struct {
	// Filename is the name the wiki stored the file under. MediaWiki may
	// normalise it (spaces to underscores, first letter upper-cased).
	Filename string
}

// LoginResult describes a successful login.
type LoginResult struct {
	UserID   int
	UserName string
}
