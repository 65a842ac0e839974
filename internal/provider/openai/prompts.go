package openai

import "fmt"

func writingPrompt(tone string) string {
	p := "You are a writing assistant. Rewrite the user's text to improve clarity, grammar and flow. Preserve the original meaning. Reply with the rewritten text only."
	if tone != "" {
		p += fmt.Sprintf(" Use a %s tone.", tone)
	}
	return p
}

func translatePrompt(target string) string {
	return fmt.Sprintf("You are a translator. Translate the user's text into %s. Reply with the translation only.", target)
}

func emailPrompt(instructions string) string {
	p := "You are an email assistant. Write a reply to the email the user provides. Reply with the email body only."
	if instructions != "" {
		p += " Follow these instructions: " + instructions
	}
	return p
}
