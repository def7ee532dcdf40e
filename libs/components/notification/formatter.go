package notification

import (
	"fmt"
	"strings"

	"github.com/elvnski/actserv/libs/components/submission"
	"github.com/elvnski/actserv/libs/shared/mail"
)

// Formatter renders the admin notification for a stored submission. Sender
// and recipients are fixed at construction. Link, when set, turns a stored
// file reference into the address shown in the message.
type Formatter struct {
	From       string
	Recipients []string
	Link       func(ref string) string
}

// NewFormatter constructs a Formatter.
func NewFormatter(from string, recipients []string) Formatter {
	return Formatter{From: from, Recipients: append([]string(nil), recipients...)}
}

// Render builds the plain-text message. Entries and attachments are listed in
// the order they were loaded.
func (f Formatter) Render(sub *submission.Submission) mail.Message {
	formName := sub.FormName()
	if formName == "" {
		formName = fmt.Sprintf("form %d", sub.FormID)
	}

	clientID := sub.ClientIdentifier
	if clientID == "" {
		clientID = "N/A"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A new submission has been received for the %s form.\n", formName)
	b.WriteString("\n")
	b.WriteString("Details:\n")
	fmt.Fprintf(&b, "Client Identifier: %s\n", clientID)
	for _, entry := range sub.Entries {
		fmt.Fprintf(&b, " - %s: %s\n", entry.FieldName, entry.Value)
	}

	if len(sub.Attachments) > 0 {
		b.WriteString("\n")
		b.WriteString("Attached Files:\n")
		for _, a := range sub.Attachments {
			ref := a.FileRef
			if f.Link != nil {
				ref = f.Link(ref)
			}
			fmt.Fprintf(&b, " - %s: %s\n", a.FieldName, ref)
		}
	}

	return mail.Message{
		Subject: fmt.Sprintf("New Form Submission: %s (ID: %d)", formName, sub.ID),
		Body:    b.String(),
		From:    f.From,
		To:      append([]string(nil), f.Recipients...),
	}
}
