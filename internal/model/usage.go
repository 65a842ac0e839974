package model

import "time"

// Operation identifies one metered action kind.
type Operation string

const (
	OpChat             Operation = "chat"
	OpWritingImprove   Operation = "writing_improve"
	OpTranslate        Operation = "translate"
	OpEmailReply       Operation = "email_reply"
	OpImageGenerate    Operation = "image_generate"
	OpBackgroundRemove Operation = "background_remove"
	OpUpscale          Operation = "upscale"
	OpOCR              Operation = "ocr"
)

type ChargeResult struct {
	NewBalance int64  `json:"new_balance"`
	Status     string `json:"status"`
}

// UsageEvent is published after a successful spend and persisted
// asynchronously to the usage log by the worker.
type UsageEvent struct {
	AccountID      string    `json:"account_id"`
	Operation      Operation `json:"operation"`
	Amount         int64     `json:"amount"`
	IdempotencyKey string    `json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
}
