package model

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	History []ChatMessage `json:"history,omitempty"`
}

type WritingRequest struct {
	Text string `json:"text"`
	Tone string `json:"tone,omitempty"`
}

type TranslateRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

type EmailReplyRequest struct {
	Email        string `json:"email"`
	Instructions string `json:"instructions,omitempty"`
}

type ImageGenerateRequest struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
}

type ImageURLRequest struct {
	ImageURL string `json:"image_url"`
}

type UpscaleRequest struct {
	ImageURL    string `json:"image_url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Scale       int    `json:"scale"`
	FaceEnhance bool   `json:"face_enhance,omitempty"`
}

type TextResult struct {
	Text       string `json:"text"`
	NewBalance int64  `json:"new_balance"`
}

type ImageResult struct {
	ImageURL   string `json:"image_url"`
	NewBalance int64  `json:"new_balance"`
}
