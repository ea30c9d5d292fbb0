package plan

// Style is the presentation lookup for a plan: a glyph for terminal output
// and a colour name for the web dashboard.
type Style struct {
	Icon  string
	Color string
}

var styles = map[ID]Style{
	Free:       {Icon: "○", Color: "gray"},
	Pro:        {Icon: "⚡", Color: "blue"},
	Business:   {Icon: "♛", Color: "purple"},
	Enterprise: {Icon: "🚀", Color: "orange"},
}

var defaultStyle = Style{Icon: "○", Color: "gray"}

// StyleFor returns the presentation style for a plan, covering unknown plans
// with a default.
func StyleFor(p ID) Style {
	if s, ok := styles[p]; ok {
		return s
	}
	return defaultStyle
}
