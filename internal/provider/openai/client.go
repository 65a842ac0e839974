// Package openai wraps the OpenAI SDK for the chat, text and image
// generation features.
package openai

import (
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"creditgate/internal/model"
	"creditgate/internal/provider"
)

// maxHistory bounds how much prior conversation is replayed per request.
const maxHistory = 12

type Client struct {
	api   oai.Client
	model oai.ChatModel
}

func New(apiKey, baseURL, chatModel string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	m := oai.ChatModel(chatModel)
	if m == "" {
		m = oai.ChatModelGPT4oMini
	}
	return &Client{api: oai.NewClient(opts...), model: m}
}

// Chat runs one chat completion with an optional system instruction and a
// bounded slice of prior messages.
func (c *Client) Chat(ctx context.Context, req model.ChatRequest) (string, error) {
	msgs := buildMessages(req)
	return c.complete(ctx, msgs)
}

// ImproveWriting rewrites text for clarity, optionally in a requested tone.
func (c *Client) ImproveWriting(ctx context.Context, req model.WritingRequest) (string, error) {
	return c.complete(ctx, []oai.ChatCompletionMessageParamUnion{
		oai.SystemMessage(writingPrompt(req.Tone)),
		oai.UserMessage(req.Text),
	})
}

// Translate renders text in the target language.
func (c *Client) Translate(ctx context.Context, req model.TranslateRequest) (string, error) {
	return c.complete(ctx, []oai.ChatCompletionMessageParamUnion{
		oai.SystemMessage(translatePrompt(req.TargetLanguage)),
		oai.UserMessage(req.Text),
	})
}

// EmailReply drafts a reply to the given email.
func (c *Client) EmailReply(ctx context.Context, req model.EmailReplyRequest) (string, error) {
	return c.complete(ctx, []oai.ChatCompletionMessageParamUnion{
		oai.SystemMessage(emailPrompt(req.Instructions)),
		oai.UserMessage(req.Email),
	})
}

// GenerateImage creates one image from a text prompt and returns its URL.
func (c *Client) GenerateImage(ctx context.Context, req model.ImageGenerateRequest) (string, error) {
	size := oai.ImageGenerateParamsSize1024x1024
	if req.Size != "" {
		size = oai.ImageGenerateParamsSize(req.Size)
	}
	resp, err := c.api.Images.Generate(ctx, oai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  oai.ImageModelDallE3,
		N:      oai.Int(1),
		Size:   size,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrRequestFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("%w: empty image response", provider.ErrRequestFailed)
	}
	return resp.Data[0].URL, nil
}

func (c *Client) complete(ctx context.Context, msgs []oai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrRequestFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", provider.ErrRequestFailed)
	}
	return resp.Choices[0].Message.Content, nil
}

func buildMessages(req model.ChatRequest) []oai.ChatCompletionMessageParamUnion {
	var msgs []oai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, oai.SystemMessage(req.System))
	}
	history := req.History
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	for _, m := range history {
		if m.Role == "assistant" {
			msgs = append(msgs, oai.AssistantMessage(m.Content))
			continue
		}
		msgs = append(msgs, oai.UserMessage(m.Content))
	}
	return append(msgs, oai.UserMessage(req.Prompt))
}
