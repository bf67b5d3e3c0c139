package message

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/rs/zerolog/log"
)

// WriteMbox writes mails to w in mbox format, oldest first as listed.  Mails that cannot be
// rendered are logged and skipped; the number written is returned.
func WriteMbox(w io.Writer, mails []*Mail) (int, error) {
	logger := log.With().Str("module", "message").Logger()
	mw := mbox.NewWriter(w)

	written := 0
	for i, m := range mails {
		part, err := Build(m)
		if err != nil {
			logger.Warn().Int("index", i).Str("subject", m.Subject).Err(err).
				Msg("Skipping message that cannot be rendered")
			continue
		}

		date := m.Date
		if date.IsZero() {
			date = time.Unix(0, 0).UTC()
		}
		sender := "MAILER-DAEMON"
		if from, err := addressOnly(m.From); err == nil {
			sender = from
		}

		dst, err := mw.CreateMessage(sender, date)
		if err != nil {
			return written, fmt.Errorf("mbox entry %d: %w", i, err)
		}
		if err := part.Encode(dst); err != nil {
			return written, fmt.Errorf("mbox entry %d: %w", i, err)
		}
		written++
	}

	return written, mw.Close()
}

func addressOnly(s string) (string, error) {
	list := recipients(s)
	if len(list) == 0 || list[0].Address == "" {
		return "", ErrNoSender
	}
	return list[0].Address, nil
}
