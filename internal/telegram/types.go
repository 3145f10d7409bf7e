package telegram

// Update is the webhook payload pushed by the bot platform.
// Only the fields this service reads are decoded.
type Update struct {
	UpdateID    int64    `json:"update_id"`
	Message     *Message `json:"message,omitempty"`
	ChannelPost *Message `json:"channel_post,omitempty"`
}

// EffectiveMessage returns the message or channel post carried by the update, or nil.
func (u Update) EffectiveMessage() *Message {
	if u.Message != nil {
		return u.Message
	}
	return u.ChannelPost
}

// Message is a chat message. Document is set when a file was attached.
type Message struct {
	MessageID int64     `json:"message_id"`
	Date      int64     `json:"date"`
	Caption   string    `json:"caption,omitempty"`
	Document  *Document `json:"document,omitempty"`
}

// Document describes an attached file on the platform.
type Document struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileName     string `json:"file_name,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// File is the result of getFile. FilePath is valid for download for a limited time.
type File struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

type apiResponse[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}
