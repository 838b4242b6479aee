package email

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"time"
)

// Message is one outgoing email. Calendar, when set, is sent as a text/calendar
// alternative with the given iTIP method.
type Message struct {
	To       string
	Subject  string
	Text     string
	Calendar []byte
	Method   string
}

// Build renders an RFC 5322 message. Without a calendar it is a single text/plain
// part; with one it is multipart/alternative.
func Build(from string, m Message, date time.Time) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", m.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", date.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(m.Calendar) == 0 {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(m.Text)
		buf.WriteString("\r\n")
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return nil, err
	}
	if _, err := text.Write([]byte(m.Text + "\r\n")); err != nil {
		return nil, err
	}

	calType := mime.FormatMediaType("text/calendar", map[string]string{"charset": "utf-8", "method": m.Method})
	cal, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {calType}})
	if err != nil {
		return nil, err
	}
	if _, err := cal.Write(m.Calendar); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}
