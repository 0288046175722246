package fanout

import "fmt"

// HelpMessage is the text announced on the help group for a bed.
func HelpMessage(room, bed string) string {
	return fmt.Sprintf("Immediate attention required at %s in %s", bed, room)
}

func helpMessage(raw map[string]any) (any, error) {
	return HelpMessage(text(raw["room"]), text(raw["bed"])), nil
}

func notificationMessage(raw map[string]any) (any, error) {
	return map[string]any{"icon": raw["icon"], "notification": raw["notification"]}, nil
}

func apparatusMessage(raw map[string]any) (any, error) {
	return map[string]any{"apparatus": raw["data"]}, nil
}

func verbatim(raw map[string]any) (any, error) { return raw, nil }

// text renders a decoded JSON value for a human readable message. Missing
// values print as None, as the robot UI expects.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
