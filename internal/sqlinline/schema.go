package sqlinline

const QCreateTasksTable = `--sql 481b193c-706d-4b6a-82a4-a8f8c0ae7c21
create table if not exists tasks (
    id uuid primary key default gen_random_uuid(),
    video_id text not null unique,
    source_url text not null,
    title text not null default '',
    channel text not null default '',
    duration double precision not null default 0,
    transcript_status text not null default 'pending',
    download_status text not null default 'pending',
    analysis_status text not null default 'pending',
    conversion_status text not null default 'pending',
    last_error text,
    local_path text,
    file_size bigint,
    artifact_count int not null default 0,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

const QCreateCredentialsTable = `--sql db7f5905-6a2e-49ca-bd38-1a022241f593
create table if not exists credentials (
    id bigserial primary key,
    service text not null,
    secret text not null,
    email text,
    password text,
    status text not null default 'active',
    usage_count int not null default 0,
    disabled_reason text,
    last_used timestamptz,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now(),
    unique (service, secret)
);
`

const QCreateArtifactsTable = `--sql 1f5df349-0920-469c-970c-bfe16f0c7600
create table if not exists artifacts (
    id bigserial primary key,
    video_id text not null,
    filename text not null,
    title text not null default '',
    description text not null default '',
    duration double precision not null default 0,
    storage_key text not null,
    public_url text not null,
    created_at timestamptz not null default now()
);
`

const QCreateNoTranscriptTable = `--sql a2088126-c963-4af6-ad6c-c56315c3b52d
create table if not exists no_transcript_videos (
    video_id text primary key,
    reason text not null default '',
    created_at timestamptz not null default now()
);
`
