package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"scenecast/internal/infra"
)

// Applies the schema to the database named by DATABASE_URL. Every
// statement is idempotent, so rerunning after a partial failure is safe.
func main() {
	godotenv.Load()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	logger := infra.NewLogger("cli").With().Str("cmd", "migrate").Logger()

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("database unreachable")
	}

	for _, object := range schema {
		if _, err := db.ExecContext(ctx, object.ddl); err != nil {
			logger.Fatal().Err(err).Str("object", object.name).Msg("apply schema")
		}
		logger.Info().Str("object", object.name).Msg("schema applied")
	}

	logger.Info().Int("objects", len(schema)).Msg("schema up to date")
}

var schema = []struct {
	name string
	ddl  string
}{
	{
		// gen_random_uuid ships with Postgres 13+; the extension covers
		// older servers.
		name: "extensions",
		ddl:  `create extension if not exists pgcrypto;`,
	},
	{
		name: "jobs",
		ddl: `
create table if not exists jobs (
    id            uuid primary key,
    status        text not null default 'queued'
                  check (status in ('queued', 'running', 'succeeded', 'failed')),
    topic         text not null,
    language      text not null default '',
    audience      text not null default '',
    hint          text not null default '',
    reuse_of      uuid,
    trace_id      text not null default '',
    storyboard    jsonb,
    script        jsonb,
    final_package jsonb,
    error_message text not null default '',
    speech_done   integer not null default 0,
    speech_failed integer not null default 0,
    images_done   integer not null default 0,
    created_at    timestamptz not null default now(),
    updated_at    timestamptz not null default now()
);`,
	},
	{
		name: "scenes",
		ddl: `
create table if not exists scenes (
    id               uuid primary key,
    job_id           uuid not null references jobs(id) on delete cascade,
    idx              integer not null,
    narration        text not null default '',
    on_screen_text   text not null default '',
    visual_brief     text not null default '',
    mood             text not null default '',
    duration_sec     integer not null default 0,
    image_prompt     text not null default '',
    image_key        text not null default '',
    image_url        text not null default '',
    claim_status     text
                     check (claim_status in ('generating', 'succeeded', 'failed')),
    claim_request_id uuid,
    claim_ts         timestamptz,
    claim_error      text not null default '',
    created_at       timestamptz not null default now(),
    updated_at       timestamptz not null default now(),
    unique (job_id, idx)
);`,
	},
	{
		// scene_id is a soft reference: restarting a job replaces its
		// scene rows while asset cleanup runs separately.
		name: "assets",
		ddl: `
create table if not exists assets (
    id          uuid primary key default gen_random_uuid(),
    job_id      uuid not null references jobs(id) on delete cascade,
    scene_id    uuid,
    kind        text not null,
    storage_key text not null default '',
    url         text not null default '',
    metadata    jsonb not null default '{}'::jsonb,
    created_at  timestamptz not null default now()
);`,
	},
	{
		name: "job_events",
		ddl: `
create table if not exists job_events (
    id      bigserial primary key,
    job_id  uuid not null references jobs(id) on delete cascade,
    level   text not null default 'info',
    message text not null,
    fields  jsonb not null default '{}'::jsonb,
    at      timestamptz not null default now()
);`,
	},
	{
		name: "batch_tasks",
		ddl: `
create table if not exists batch_tasks (
    id           uuid primary key default gen_random_uuid(),
    job_id       uuid not null references jobs(id) on delete cascade,
    kind         text not null,
    scene_ids    text[] not null default '{}',
    force        boolean not null default false,
    missing_only boolean not null default false,
    depth        integer not null default 0,
    status       text not null default 'queued'
                 check (status in ('queued', 'running', 'done', 'failed')),
    attempted    integer not null default 0,
    succeeded    integer not null default 0,
    failed       integer not null default 0,
    skipped      integer not null default 0,
    last_error   text not null default '',
    created_at   timestamptz not null default now(),
    updated_at   timestamptz not null default now()
);`,
	},
	{
		name: "integration_tokens",
		ddl: `
create table if not exists integration_tokens (
    id         uuid primary key default gen_random_uuid(),
    provider   text not null unique,
    token      text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);`,
	},
	{
		name: "indexes",
		ddl: `
create index if not exists idx_jobs_status_created_at on jobs(status, created_at);
create index if not exists idx_jobs_created_at on jobs(created_at desc);
create index if not exists idx_assets_job on assets(job_id);
create index if not exists idx_job_events_job on job_events(job_id, id);
create index if not exists idx_batch_tasks_status_created_at on batch_tasks(status, created_at);`,
	},
}
