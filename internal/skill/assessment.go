package skill

import "fmt"

// StarWatchdog puts the interviewer into STAR listening mode: it watches for
// Situation, Task, Action, and Result in behavioral answers and prompts
// follow-ups for the missing parts. Always produces output.
type StarWatchdog struct{}

func (StarWatchdog) ID() string { return "star_watchdog" }

func (StarWatchdog) Execute(Context) string {
	return `[SKILL: STAR METHOD WATCHDOG ACTIVE]
Mode: LISTENING_FOR_STRUCTURE

As the candidate tells their story, check for the STAR components:
1. Situation/Task (The Context)
2. Action (What THEY specifically did)
3. Result (The Outcome/Metrics)

IF they finish their story and missed 'Action' (used "we" too much) -> Ask: "What was YOUR specific role in that?"
IF they finish their story and missed 'Result' -> Ask: "What was the final outcome or impact of that?"`
}

// objectionScenarios are the client moods the sales simulator can adopt.
var objectionScenarios = []string{
	"OBJECTION: PRICE - Say: 'I like the product, but it's 20% more expensive than the competitor. Why should I pay more?'",
	"OBJECTION: AUTHORITY - Say: 'I'm not the decision maker, and my boss hates changing vendors. Give me something to convince him.'",
	"OBJECTION: TIMING - Say: 'We are freezing budget until Q4. Why should we buy now?'",
	"OBJECTION: TRUST - Say: 'I've heard your support is terrible. Convince me otherwise.'",
}

// SalesObjectionSimulator flips the interviewer into a skeptical-prospect
// roleplay with a randomly chosen objection scenario. Always produces output.
type SalesObjectionSimulator struct{}

func (SalesObjectionSimulator) ID() string { return "sales_objection" }

func (s SalesObjectionSimulator) Execute(ctx Context) string {
	scenario := objectionScenarios[ctx.pick(len(objectionScenarios))]

	return fmt.Sprintf(`[SKILL: SALES SIMULATION ACTIVE]
Mode: ROLEPLAY_OBJECTION

You are NO LONGER just an interviewer. You are a SKEPTICAL PROSPECT.
Do not accept their first answer easily. Push back once.

Your current Objection Scenario:
%s

Evaluate how they handle the pressure. Do they listen? Do they empathize? Or do they argue?`, scenario)
}

var (
	_ Skill = (*StarWatchdog)(nil)
	_ Skill = (*SalesObjectionSimulator)(nil)
)
