package slack

import "net/url"

// Command is the subset of slash command form fields the service reads.
type Command struct {
	Token     string
	Command   string
	Text      string
	UserID    string
	UserName  string
	ChannelID string
}

func ParseCommand(form url.Values) Command {
	return Command{
		Token:     form.Get("token"),
		Command:   form.Get("command"),
		Text:      form.Get("text"),
		UserID:    form.Get("user_id"),
		UserName:  form.Get("user_name"),
		ChannelID: form.Get("channel_id"),
	}
}

// Reply is the synchronous slash command response body.
type Reply struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

// Ephemeral builds a reply visible only to the invoking user.
func Ephemeral(text string) Reply {
	return Reply{ResponseType: "ephemeral", Text: text}
}
