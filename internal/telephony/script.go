package telephony

import (
	"fmt"
	"strings"

	"stock-finder/internal/catalog"
)

// Script is everything the voice agent needs to run one inventory call.
type Script struct {
	OpeningLine     string
	Task            string
	VoiceID         string
	Model           string
	Language        string
	MaxDurationSecs int
	WaitForGreeting bool
	Record          bool

	// Reference is the product reference, echoed into call metadata.
	Reference string
}

// ScriptDefaults carries provider settings that do not depend on the product.
type ScriptDefaults struct {
	VoiceID         string
	Model           string
	MaxDurationSecs int
}

// NewScript builds the call script for product p.
func NewScript(p catalog.Product, d ScriptDefaults) Script {
	if d.VoiceID == "" {
		d.VoiceID = "nat"
	}
	if d.Model == "" {
		d.Model = "enhanced"
	}
	if d.MaxDurationSecs <= 0 {
		d.MaxDurationSecs = 120
	}
	brand := strings.TrimSpace(p.Brand)
	if brand == "" {
		brand = "specific"
	}
	return Script{
		OpeningLine: fmt.Sprintf("Hi, I'm calling to check if you have a %s watch in stock.", article(brand)),
		Task: fmt.Sprintf(
			"Find out if the store has the %s (ref: %s) in stock, and if not, ask about availability timeline or waitlist options. "+
				"Be polite and brief. If they ask for contact information, say you will call back. Do not provide personal information.",
			p.FullName, p.Reference),
		VoiceID:         d.VoiceID,
		Model:           d.Model,
		Language:        "en",
		MaxDurationSecs: d.MaxDurationSecs,
		WaitForGreeting: true,
		Record:          true,
		Reference:       p.Reference,
	}
}

func article(word string) string {
	if word == "specific" {
		return word
	}
	return "specific " + word
}
