package compiler

// Config carries the digit-collection defaults and the fallback terminal
// applied to every compiled flow.
type Config struct {
	NumDigits     int    // digits collected per decision
	MaxTries      int    // collection attempts before the error branch
	MaxTime       int    // seconds to wait for input
	ErrorPrompt   string // prompt played on an invalid entry
	TimeoutPrompt string // prompt played when input times out
	FallbackLabel string // label of the appended generic-problems record
}

// DefaultConfig returns the stock platform settings.
func DefaultConfig() Config {
	return Config{
		NumDigits:     1,
		MaxTries:      3,
		MaxTime:       7,
		ErrorPrompt:   "callflow:1009",
		TimeoutPrompt: "callflow:1010",
		FallbackLabel: "Problems",
	}
}
