package core

import (
	"fmt"
	"strings"
)

// ChatRole identifies the author of a chat turn
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of the conversation sent to the LLM
type ChatMessage struct {
	Role    ChatRole
	Content string
}

const (
	systemPrompt = "You are a large language model who regularly gets a lot of email spam. " +
		"You want to waste spammers' time, but in a way that they won't realize you're doing it, " +
		"with a bit of wry, dry humour."

	openingPrompt = "%s I received a spam message. I would like you to reply to it as me, " +
		"trying to waste as much of the spammer's time as possible. Act as if you're me, %s, " +
		"and only give me the reply to the message, with no text before or after.\n\n" +
		"Here's the message:\n\n%s"

	followUpPrompt = "Here's the next spam message. Please respond to it as before:\n\n%s"
)

// Persona describes who the LLM pretends to be
type Persona struct {
	Name            string
	PersonalDetails string
}

// BodyProcessor prepares a message body before it is placed in a prompt
type BodyProcessor func(body string) string

// BuildConversation turns a thread into chat turns. The first third-party
// message opens the conversation; self-authored messages before it are dropped.
// Later self-authored messages become assistant turns, the spammer's become user turns.
func BuildConversation(t *Thread, self SelfAddresses, persona Persona, process BodyProcessor) ([]ChatMessage, error) {
	if process == nil {
		process = func(body string) string { return body }
	}

	first, err := t.FirstNonSelfMessage(self)
	if err != nil {
		return nil, err
	}

	chat := []ChatMessage{
		{Role: RoleSystem, Content: systemPrompt},
		{
			Role: RoleUser,
			Content: strings.TrimSpace(fmt.Sprintf(openingPrompt,
				strings.TrimSpace(persona.PersonalDetails), persona.Name, process(first.Body))),
		},
	}

	started := false
	for i := range t.Messages {
		m := &t.Messages[i]
		if !started {
			started = m.ID == first.ID
			continue
		}
		if m.IsFromMe(self) {
			chat = append(chat, ChatMessage{Role: RoleAssistant, Content: process(m.Body)})
		} else {
			chat = append(chat, ChatMessage{Role: RoleUser, Content: fmt.Sprintf(followUpPrompt, process(m.Body))})
		}
	}

	return chat, nil
}

// SplitSystem separates the system prompt from the chat turns and merges
// consecutive turns by the same role, for providers that require strictly
// alternating user and assistant turns.
func SplitSystem(conversation []ChatMessage) (string, []ChatMessage) {
	var system []string
	turns := make([]ChatMessage, 0, len(conversation))
	for _, m := range conversation {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Role == m.Role {
			turns[n-1].Content += "\n\n" + m.Content
			continue
		}
		turns = append(turns, m)
	}
	return strings.Join(system, "\n\n"), turns
}
