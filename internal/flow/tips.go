package flow

// TipPrefix precedes every tip sent to a user.
const TipPrefix = "Quick Tip: "

// Tips is the fixed pool the tip command draws from.
var Tips = []string{
	"Take three slow, deep breaths whenever you feel overwhelmed.",
	"A short walk outside can lift your mood and clear your mind.",
	"Try writing down three things you're grateful for today.",
	"Keep a regular sleep schedule, even on weekends.",
	"Drink a glass of water. Dehydration can affect how you feel.",
	"Reach out to a friend or family member just to say hello.",
	"Take a break from screens for at least 30 minutes before bed.",
	"Be kind to yourself. Progress matters more than perfection.",
	"Break big tasks into small steps and celebrate each one.",
	"If you're struggling, talking to a professional is a sign of strength.",
}

func (d *Dispatcher) randomTip() string {
	return TipPrefix + Tips[d.pick(len(Tips))]
}
