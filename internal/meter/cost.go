// Package meter holds the token-cost rules for metered operations.
// Cost computation is pure; balance mutation lives in the repository.
package meter

import (
	"errors"
	"fmt"

	"creditgate/internal/model"
)

const (
	// MaxOutputPixels caps upscale output at an 8K frame. Requests above it
	// are refused outright, independent of the caller's balance.
	MaxOutputPixels = 7680 * 4320

	// MaxUploadBytes caps image payloads accepted at the HTTP boundary.
	MaxUploadBytes = 10 << 20

	tokensPerMegapixel = 1_000_000
)

var (
	ErrUnknownOperation = errors.New("unknown operation")
	ErrInvalidScale     = errors.New("scale must be one of 2, 4, 6, 8")
	ErrInvalidSize      = errors.New("width and height must be positive")
	ErrOutputTooLarge   = errors.New("upscale output exceeds the maximum pixel count")
)

var staticCosts = map[model.Operation]int64{
	model.OpChat:             1,
	model.OpWritingImprove:   1,
	model.OpTranslate:        1,
	model.OpEmailReply:       1,
	model.OpOCR:              1,
	model.OpImageGenerate:    2,
	model.OpBackgroundRemove: 2,
}

// StaticCost returns the fixed token cost of op. Upscale has no static cost;
// use UpscaleCost instead.
func StaticCost(op model.Operation) (int64, error) {
	cost, ok := staticCosts[op]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	return cost, nil
}

// UpscaleCost computes the token cost of upscaling a width x height image by
// scale: one token per started megapixel of output. The request is refused
// when the output would exceed MaxOutputPixels, before any balance check or
// submission.
func UpscaleCost(width, height, scale int) (int64, error) {
	if width <= 0 || height <= 0 {
		return 0, ErrInvalidSize
	}
	if !ValidScale(scale) {
		return 0, ErrInvalidScale
	}
	// Bound each dimension before multiplying so the pixel product cannot
	// wrap. A single dimension above the ceiling already exceeds it on its
	// own, since scale is at least 2.
	if int64(width) > MaxOutputPixels || int64(height) > MaxOutputPixels {
		return 0, fmt.Errorf("%w: %dx%d input", ErrOutputTooLarge, width, height)
	}
	pixels := int64(width) * int64(scale) * int64(height) * int64(scale)
	if pixels > MaxOutputPixels {
		return 0, fmt.Errorf("%w: %d pixels", ErrOutputTooLarge, pixels)
	}
	cost := (pixels + tokensPerMegapixel - 1) / tokensPerMegapixel
	return cost, nil
}

// ValidScale reports whether scale is a supported upscale factor.
func ValidScale(scale int) bool {
	switch scale {
	case 2, 4, 6, 8:
		return true
	}
	return false
}

// Available reports whether a balance covers a cost.
func Available(balance, cost int64) bool {
	return balance >= cost
}
