package scaffold

// defaultPrompts holds the starter prompt template for each of the five
// phases, written under .wreckit/prompts/<phase>.md by init. Users are
// expected to edit these for their own project; the defaults just need
// to be good enough to drive a first item through the workflow.
var defaultPrompts = map[string]string{
	"research": `You are researching item ${ITEM_ID}: ${TITLE}

${OVERVIEW}

## Project context

${PROJECT_CONTEXT}

Investigate the codebase and write your findings as research notes:
what exists today, which files are relevant, what constraints or
existing patterns the plan should respect, and any open questions that
need resolving before implementation can start. Do not write or modify
any files; this phase is read-only.`,

	"plan": `You are planning item ${ITEM_ID}: ${TITLE}

${OVERVIEW}

Read research.md in this item's directory for prior findings. Break
the work into independently implementable user stories, each with a
clear title and acceptance criteria.

Write a short plan in prose, then end your output with exactly one
fenced block tagged json containing the structured story list:

` + "```" + `json
{
  "id": "${ITEM_ID}",
  "branch_name": "",
  "user_stories": [
    {
      "id": "US-001",
      "title": "...",
      "acceptance_criteria": ["..."],
      "priority": 1,
      "status": "pending"
    }
  ]
}
` + "```" + `

Story ids must match US-\d{3,}. Order stories by priority, lowest
first.`,

	"implement": `You are implementing item ${ITEM_ID}: ${TITLE}, story ${STORY_ID}: ${STORY_TITLE}

Acceptance criteria:
${STORY_CRITERIA}

Make the changes needed to satisfy this story only. Run the project's
tests if they exist. When the story is fully done, say so explicitly
so the next story can begin.`,

	"pr": `You are writing the pull request description for item ${ITEM_ID}: ${TITLE}

${OVERVIEW}

Branch: ${BRANCH}

Summarize what changed and why, in a form suitable for a PR body.
Mention any follow-up work that was intentionally left out.`,

	"complete": `You are closing out item ${ITEM_ID}: ${TITLE} after its pull request merged.

Confirm there is nothing left to clean up (temporary branches, stray
notes) and record a brief closing summary.`,
}
