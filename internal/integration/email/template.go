package email

import (
	"fmt"
	"html"
	"strings"
)

// renderTemplate produces the fixed branded HTML body (header / sender card
// / body / footer) and its plain-text equivalent.
func renderTemplate(senderName, senderEmail, subject, body string) (htmlBody, plainBody string) {
	senderLine := senderName
	if senderEmail != "" {
		senderLine = fmt.Sprintf("%s <%s>", senderName, senderEmail)
	}

	escapedBody := html.EscapeString(body)
	escapedBody = strings.ReplaceAll(escapedBody, "\n", "<br>\n")

	htmlBody = fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f4f5f7;font-family:Helvetica,Arial,sans-serif;">
  <table role="presentation" width="100%%" cellpadding="0" cellspacing="0">
    <tr><td align="center" style="padding:24px;">
      <table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;overflow:hidden;">
        <tr><td style="background:#1f2937;color:#ffffff;padding:16px 24px;font-size:18px;font-weight:bold;">
          AgentDesk
        </td></tr>
        <tr><td style="padding:16px 24px;border-bottom:1px solid #e5e7eb;color:#6b7280;font-size:13px;">
          From: %s
        </td></tr>
        <tr><td style="padding:24px;color:#111827;font-size:15px;line-height:1.6;">
          %s
        </td></tr>
        <tr><td style="padding:16px 24px;background:#f9fafb;color:#9ca3af;font-size:12px;">
          Sent by an AgentDesk persona on behalf of %s.
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`,
		html.EscapeString(senderLine),
		escapedBody,
		html.EscapeString(senderName),
	)

	plainBody = fmt.Sprintf("From: %s\nSubject: %s\n\n%s\n\n--\nSent by an AgentDesk persona on behalf of %s.\n",
		senderLine, subject, body, senderName)
	return htmlBody, plainBody
}
