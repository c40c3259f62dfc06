package dispatcher

import "strings"

// Command is a recognized chat command.
type Command string

const (
	CmdNone    Command = ""
	CmdHi      Command = "hi"
	CmdHello   Command = "hello"
	CmdHelp    Command = "help"
	CmdWhoami  Command = "whoami"
	CmdConnect Command = "connect"
	CmdOnboard Command = "onboard"
	CmdAgenda  Command = "agenda"
	CmdSetTZ   Command = "set tz"
)

const setTZPrefix = "set tz "

var literalCommands = map[string]Command{
	"hi":      CmdHi,
	"hello":   CmdHello,
	"help":    CmdHelp,
	"whoami":  CmdWhoami,
	"connect": CmdConnect,
	"onboard": CmdOnboard,
	"agenda":  CmdAgenda,
}

// Classify decides whether text is a command. Matching is on the trimmed,
// case-folded text; arg carries the original-case value of "set tz <value>".
func Classify(text string) (cmd Command, arg string) {
	trimmed := strings.TrimSpace(text)
	if c, ok := literalCommands[strings.ToLower(trimmed)]; ok {
		return c, ""
	}
	if len(trimmed) >= len(setTZPrefix) && strings.EqualFold(trimmed[:len(setTZPrefix)], setTZPrefix) {
		return CmdSetTZ, strings.TrimSpace(trimmed[len(setTZPrefix):])
	}
	return CmdNone, ""
}

// IsCommand reports whether text classifies as any command.
func IsCommand(text string) bool {
	cmd, _ := Classify(text)
	return cmd != CmdNone
}
