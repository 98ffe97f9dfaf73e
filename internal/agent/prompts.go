package agent

const goalPrompt = `You are working on the goal below. Using the context and memories,
decide what to do next. Reply with a single JSON object:
{"summary": "one sentence", "progress": number between 0 and 1,
 "actions": [{"type": "post_update" | "store_memory" | "analyze_market", "content": "text"}]}

Goal (%s, priority %.2f, progress %.2f): %s

%s%s`

const newGoalsPrompt = `Given the current situation, propose up to %d new goals covering market
opportunities, risk management, community engagement and research needs.
Reply with a JSON list: [{"type": "market_analysis" | "portfolio_management" |
"risk_management" | "social_engagement" | "learning" | "system_optimization",
"description": "text", "priority": number between 0 and 1}]

Open goals:
%s`

const communityPrompt = `Write a short community update (under 280 characters) about recent
activity. Plain text only, no hashtags.

%s`

const researchPrompt = `Research the topic "%s" for a crypto market agent. Summarize current
trends, notable risks and opportunities in a short report.`

const inboundPrompt = `%s (%s) wrote on %s:
%s

Reply helpfully and briefly.

%s`
