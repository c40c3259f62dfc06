package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		cmd  Command
		arg  string
	}{
		{"hi", CmdHi, ""},
		{"  HELLO ", CmdHello, ""},
		{"Help", CmdHelp, ""},
		{"whoami", CmdWhoami, ""},
		{"CONNECT", CmdConnect, ""},
		{"onboard", CmdOnboard, ""},
		{"agenda", CmdAgenda, ""},
		{"set tz America/New_York", CmdSetTZ, "America/New_York"},
		{"SET TZ   Europe/Paris  ", CmdSetTZ, "Europe/Paris"},
		{"set tz", CmdNone, ""},
		{"set timezone UTC", CmdNone, ""},
		{"hi there", CmdNone, ""},
		{"agenda please", CmdNone, ""},
		{"", CmdNone, ""},
	}
	for _, tt := range tests {
		cmd, arg := Classify(tt.text)
		assert.Equal(t, tt.cmd, cmd, "text %q", tt.text)
		assert.Equal(t, tt.arg, arg, "text %q", tt.text)
		assert.Equal(t, tt.cmd != CmdNone, IsCommand(tt.text), "text %q", tt.text)
	}
}
