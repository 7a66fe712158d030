package docs

var topics = []Topic{
	{
		Name:    "quickstart",
		Title:   "Quick Start",
		Summary: "Getting started with wreckit",
		Content: topicQuickstart,
	},
	{
		Name:    "config",
		Title:   "Configuration Reference",
		Summary: "config.json schema, fields, and defaults",
		Content: topicConfig,
	},
	{
		Name:    "phases",
		Title:   "Phase Table",
		Summary: "The five fixed phases and their tool allowlists",
		Content: topicPhases,
	},
	{
		Name:    "variables",
		Title:   "Prompt Variables",
		Summary: "Built-in template variables available to each phase's prompt",
		Content: topicVariables,
	},
	{
		Name:    "runner",
		Title:   "Execution Model",
		Summary: "Phase Runner, Orchestrator, healing, and rollback",
		Content: topicRunner,
	},
	{
		Name:    "artifacts",
		Title:   "Workspace Layout",
		Summary: "Structure of .wreckit/ and what gets written where",
		Content: topicArtifacts,
	},
}

const topicQuickstart = `Quick Start
===========

1. Initialize a workspace (must be run inside a git working copy):

    cd your-project
    wreckit init

   This creates .wreckit/config.json and one default prompt template
   per phase under .wreckit/prompts/.

2. Create an item by hand under .wreckit/items/<id>/item.json (ideas
   intake from an external backlog is not part of this tool), or adapt
   one of the prompt templates and drive it through phases directly.

3. Preview what would run next, without dispatching any agent:

    wreckit all --dry-run

4. Drive a single item through every phase to done:

    wreckit run ITEM-1

5. Check progress:

    wreckit status ITEM-1
    wreckit show ITEM-1
    wreckit list

CLI Commands
------------

  wreckit init                      Scaffold .wreckit/
  wreckit status <id> [--json]      Show one item's current state
  wreckit show <id> [--json]        Print research.md/plan.md/pr.md
  wreckit list [--json]             List every item and its state
  wreckit run <id>                  Drive one item to done
  wreckit phase <phase> <id>        Run a single phase [--force]
  wreckit next                      Advance the lowest-id runnable item
  wreckit all [--parallel N]        Drive every item [--dry-run]
  wreckit rollback <id> [--yes]     Reset a done item's branch
  wreckit doctor <id>               Agent-assisted diagnosis of a stuck item
  wreckit check-integrity           Scan the store for structural problems
  wreckit watchdog [--window DUR]   Flag items stale past a time window
  wreckit docs [topic]              Show this documentation

run and all refuse to start under CLAUDECODE=true, since both dispatch
further agent turns and nesting them is unsupported.
`

const topicConfig = `Configuration Reference
=======================

wreckit is configured by .wreckit/config.json, optionally overlaid by
.wreckit/config.local.json for machine-local overrides (secrets,
a different agent.kind for local testing). Overlay fields replace the
base value outright; maps and slices replace wholesale rather than
merging element-wise.

Top-level fields
----------------

  base_branch       string    Branch phases branch from and PRs target. Default: main.
  branch_prefix     string    Prefix for item branch names. Default: wreckit/.
  timeout_seconds   int       Per-phase agent dispatch timeout. Default: 30.
  parallel          int       Default worker count for 'all'. Default: 1. Must be >= 1.
  agent             object    Required. Agent transport configuration.
  repo              object    owner/name of the GitHub repository for pr/complete.
  skills            map       Per-phase extra tool requests (see below).

agent fields
------------

  kind                string   One of: process, sdk, sandboxed-vm, mock.
  completion_signal   string   Marker the transport looks for to end a turn.
  sandbox_command     string   Command template for the sandboxed-vm kind.
  env                 map      Extra environment variables, in declaration order.

env is a plain JSON object; a hand-rolled decoder walks the object's
raw tokens instead of going through a plain map[string]string, so the
declaration order is kept when the config is written back out.
Duplicate keys are rejected by validation, and the agent process
receives the entries as a map, so their order does not affect its
environment.

skills
------

  skills:
    research:
      - name: "codebase-search"
        tools: ["Grep", "Glob"]

Each phase's tool allowlist is fixed (see the phases topic); a skill's
tools must already be in its phase's allowlist, or the Phase Runner
logs a non-fatal warning and the extra tool is dropped from that turn.

Validation Rules
----------------

- agent.kind must be one of the four known transports.
- timeout_seconds must be >= 0, parallel must be >= 1.
- base_branch must be non-empty.
- agent.env keys must match [A-Za-z_][A-Za-z0-9_]* and be unique.
- skills keys must name a real phase; skill names must be unique per
  phase, and tool entries must be non-empty.

Example Config
--------------

  {
    "base_branch": "main",
    "branch_prefix": "wreckit/",
    "timeout_seconds": 45,
    "parallel": 2,
    "agent": {
      "kind": "process",
      "completion_signal": "WRECKIT_DONE",
      "env": {"NODE_ENV": "test"}
    },
    "repo": {"owner": "acme", "name": "widgets"}
  }
`

const topicPhases = `Phase Table
===========

Every item moves through a fixed table of five phases. Each phase has
a start-state requirement, a target state it advances the item to on
success, and a tool allowlist the agent turn is restricted to.

research
--------

  Start: raw               Target: researched
  Tools: Read, Glob, Grep, WebSearch, WebFetch

Read-only investigation: what exists today, which files are relevant,
open questions the plan phase should resolve. Skipped if the item is
already at or past researched, unless run with --force.

plan
----

  Start: researched         Target: planned
  Tools: Read, Glob, Grep, Write

Breaks the item into independently implementable user stories. The
agent's output must end in a fenced json block describing the story
list (id, branch_name, user_stories[]); the Phase Runner extracts it
and persists it as the item's plan document (prd.json) alongside the
prose in plan.md. Touching any file outside plan.md/prd.json fails
the phase.

implement
---------

  Start: implementing (itself) Target: implementing (itself, until done)
  Tools: Read, Edit, Write, Glob, Grep, Bash

Not a single agent turn: the Implement Loop dispatches one turn per
pending story, validates the turn actually touched a file within the
story's declared scope and left no secret-like string behind, marks
the story done, and repeats until no pending story remains — at which
point the item's next applicable phase becomes pr. A failing story is
handed to the Healing Controller for classification and retry before
being judged unrecoverable.

pr
--

  Start: implementing        Target: in_pr
  Tools: Read, Bash

Pushes the item's branch and opens (or updates) a pull request whose
body is the agent's rendered output.

complete
--------

  Start: in_pr                Target: done
  Tools: Read, Bash

Dispatches the agent for a closing turn, then merges the pull request
itself through the GitHub host (a squash merge); it does not wait for
a merge made outside wreckit. The merge commit is recorded as the
item's rollback anchor here, ahead of the state flip to done.
`

const topicVariables = `Prompt Variables
================

Every phase's prompt template is expanded with ${VAR} (or $VAR)
syntax before being sent to the agent. Any name not found in the
phase's variable set falls back to the process environment.

research / plan / pr / complete
--------------------------------

  ITEM_ID            The item's id.
  TITLE              The item's title.
  OVERVIEW           The item's overview text.
  STATE              The item's current state.
  BRANCH             The item's branch name, if one has been assigned.
  PROJECT_CONTEXT    Gathered repository context (research phase only,
                      and only when a project root was configured).

implement
---------

  ITEM_ID            The item's id.
  TITLE              The item's title.
  STORY_ID           The current story's id (e.g. US-001).
  STORY_TITLE        The current story's title.
  STORY_CRITERIA     The current story's acceptance criteria, one per line.

A story retried after a healing-controller-approved failure also gets
a guidance paragraph appended after these variables are expanded,
describing what went wrong and what to change.
`

const topicRunner = `Execution Model
===============

Phase Runner
------------

Drives exactly one phase of one item: validates the transition is
legal for the item's current state, skips if the item is already at
the phase's target state and the phase's artifacts already exist
(unless --force), resolves the tool allowlist,
dispatches the agent, persists the resulting artifact and item state,
and records a timing entry.

Orchestrator
------------

Drives many items toward completion:

  wreckit run <id>      AdvanceOne in a loop until that item reaches done.
  wreckit next          AdvanceOne on the single lowest-id runnable item.
  wreckit all           RunSequential, or RunParallel with --parallel N >= 2.

An item is runnable once every id in its depends_on list is itself
done. RunSequential rescans and advances the lowest-id runnable item
each round; an item that fails a phase is excluded from further
rounds so the loop still terminates. RunParallel runs N workers, each
claiming one runnable item at a time and driving it phase-by-phase
until it reaches done or fails.

Healing Controller
-------------------

When the implement phase's agent turn fails, the failure text is
classified into a closed taxonomy (git-lock, package-manager-failure,
json-corruption, plan-validation, story-validation, or other). Every
class but other is recoverable up to a per-(item, class) attempt cap;
a recoverable failure gets retried with guidance describing the
failure, an unrecoverable one stops the item at implementing with
last_error set.

Rollback
--------

wreckit rollback <id> resets base_branch to a done item's recorded
rollback_sha, force-pushes it, and flips the item back to implementing
— clearing rollback_sha, completed_at, and last_error so it can be
re-driven through the remaining phases. Destructive: requires typing
"y" at a confirmation prompt unless --yes is passed.

Diagnostics
-----------

wreckit check-integrity scans every item for structural problems
(an unreadable or corrupt item.json, a prd.json that fails to parse
or validate, a dangling depends_on reference). wreckit watchdog additionally flags items whose
updated_at is older than a window (default 30m) while still short of
done, a sign a phase dispatch died without updating the item.
wreckit doctor <id> dispatches one agent turn specifically to diagnose
why an item is stuck, without advancing its state.
`

const topicArtifacts = `Workspace Layout
================

wreckit creates a .wreckit/ directory in the project root to store
configuration, prompt templates, and per-item state. Items communicate
with their own phases entirely through these files — nothing is kept
only in an agent's conversational memory.

Directory Structure
--------------------

  .wreckit/
  ├── config.json              Workspace configuration
  ├── config.local.json        Optional machine-local overlay
  ├── healing-log.jsonl        Append-only log of every healing decision
  ├── prompts/
  │   ├── research.md          Prompt template for the research phase
  │   ├── plan.md
  │   ├── implement.md
  │   ├── pr.md
  │   └── complete.md
  └── items/
      └── <id>/
          ├── item.json         The item record and its current state
          ├── research.md       Research phase output
          ├── plan.md           Plan phase prose output
          ├── prd.json          Plan phase structured story list
          ├── pr.md             PR phase output (the PR body)
          └── timing.json       Start/end timestamps per phase dispatch

item.json
---------

The durable Item record: id, title, overview, state, branch, pr_url,
pr_number, rollback_sha, depends_on, campaign, last_error, and
timestamps. Written atomically and under an advisory per-item lock, so
a crash mid-write never leaves a partially-written record, and two
processes never race on the same item.

prd.json
--------

The structured plan document extracted from the plan phase's ` + "```" + `json
block: schema_version, id, branch_name, and user_stories (each with an
id matching US-\d{3,}, a title, acceptance criteria, a priority, and a
status that flips from pending to done as the implement phase
completes each one).

timing.json
-----------

One entry per phase dispatch for this item: phase name, start, end,
and duration. Useful for spotting which phase is slow or stuck.

healing-log.jsonl
------------------

One JSON line per healing decision across every item: the failure's
class, the failure text, the remedy applied, and the final outcome
(recovered or unrecoverable). The guidance handed to the next attempt
is not logged. Appends are serialized so concurrent items
in a parallel run never interleave a partial line.
`

// SchemaReference returns the combined config schema, phase table, and
// prompt-variable documentation suitable for embedding in prompts.
func SchemaReference() string {
	return topicConfig + "\n\n" + topicPhases + "\n\n" + topicVariables
}
