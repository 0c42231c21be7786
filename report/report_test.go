package report

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3gate/s3gate/errors"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestNewSender(t *testing.T) {
	t.Run("all settings required", func(t *testing.T) {
		for _, args := range [][3]string{
			{"", "to@example.com", "smtp:25"},
			{"from@example.com", "", "smtp:25"},
			{"from@example.com", "to@example.com", ""},
			{"from@example.com", " , ", "smtp:25"},
		} {
			_, err := NewSender(args[0], args[1], args[2], testLogger())
			assert.ErrorIs(t, err, errors.ErrMisconfigured)
		}
	})

	t.Run("recipient list is split and trimmed", func(t *testing.T) {
		sender, err := NewSender("from@example.com", "a@example.com, b@example.com", "smtp:25", testLogger())
		require.NoError(t, err)
		assert.Equal(t, []string{"a@example.com", "b@example.com"}, sender.to)
	})
}

func TestSend(t *testing.T) {
	sender, err := NewSender("alerts@example.com", "ops@example.com", "smtp.example.com:25", testLogger())
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	sender.send = func(addr, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err = sender.Send(Context{
		Name:      "nightly-sync",
		Namespace: "prod",
		Status:    "Failed",
		Timestamp: time.Date(2021, 6, 1, 3, 0, 0, 0, time.UTC),
		Host:      "argo.example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:25", gotAddr)
	assert.Equal(t, "alerts@example.com", gotFrom)
	assert.Equal(t, []string{"ops@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: [s3gate] Transfer failure: nightly-sync")
	assert.Contains(t, msg, "Namespace: prod")
	assert.Contains(t, msg, "Status:    Failed")
	assert.Contains(t, msg, "https://argo.example.com/workflows/prod/nightly-sync")
}
