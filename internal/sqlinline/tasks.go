package sqlinline

const QClaimQueuedTask = `--sql 8e1bdd8b-8673-485b-95b5-6035e9ad891b
with next_task as (
    select id
    from tasks
    where transcript_status = 'pending'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update tasks
    set transcript_status = 'fetching', updated_at = now()
    where id in (select id from next_task)
    returning id, video_id, source_url, title, channel, duration,
        transcript_status, download_status, analysis_status, conversion_status,
        coalesce(last_error, ''), coalesce(local_path, ''), coalesce(file_size, 0),
        artifact_count
)
select * from updated;
`

const QSelectTask = `--sql 9ecbdb0c-65f4-4509-a7b4-780150fd54c1
select id, video_id, source_url, title, channel, duration,
    transcript_status, download_status, analysis_status, conversion_status,
    coalesce(last_error, ''), coalesce(local_path, ''), coalesce(file_size, 0),
    artifact_count, created_at, updated_at
from tasks
where id = $1::uuid;
`

const QListTasks = `--sql 4c6264a3-590a-4462-a39f-23ebb27d36cf
select id, video_id, source_url, title, channel, duration,
    transcript_status, download_status, analysis_status, conversion_status,
    coalesce(last_error, ''), coalesce(local_path, ''), coalesce(file_size, 0),
    artifact_count, created_at, updated_at
from tasks
order by created_at desc
limit $1 offset $2;
`

const QInsertTask = `--sql b518d090-9538-481b-a781-95b67805cd39
insert into tasks (video_id, source_url, title, channel, duration)
values ($1, $2, $3, $4, $5)
on conflict (video_id) do nothing
returning id;
`

const QSetTranscriptStatus = `--sql c7606a4e-3844-484a-b7fc-c6ec12ccfb18
update tasks
set transcript_status = $2::text, updated_at = now()
where id = $1::uuid;
`

const QSetDownloadStatus = `--sql 0847bf53-3d7d-4c0e-b345-75a7ecefeff7
update tasks
set download_status = $2::text, updated_at = now()
where id = $1::uuid;
`

const QSetAnalysisStatus = `--sql e939a682-76d4-4c42-bed4-51a3e8cb597f
update tasks
set analysis_status = $2::text, updated_at = now()
where id = $1::uuid;
`

const QSetConversionStatus = `--sql c38c7755-49bf-4287-9de8-b4beae8cb9a7
update tasks
set conversion_status = $2::text, updated_at = now()
where id = $1::uuid;
`

const QSetTaskError = `--sql 911174c2-7472-4c29-8696-d603c9ae4913
update tasks
set last_error = $2::text, updated_at = now()
where id = $1::uuid;
`

const QSkipAllPhases = `--sql 6e721b08-3fe5-48a2-9ff0-d8b9d613e4e2
update tasks
set transcript_status = 'skipped',
    download_status = 'skipped',
    analysis_status = 'skipped',
    conversion_status = 'skipped',
    last_error = $2::text,
    updated_at = now()
where id = $1::uuid;
`

const QSetDownloadResult = `--sql 6da067a5-6634-47a4-a211-6b84c2eb9802
update tasks
set download_status = 'completed',
    local_path = $2::text,
    file_size = $3::bigint,
    updated_at = now()
where id = $1::uuid;
`

const QSetArtifactCount = `--sql 46e1a52d-4f84-4572-bb1f-dcca82fae329
update tasks
set artifact_count = $2::int, updated_at = now()
where id = $1::uuid;
`

const QTaskStats = `--sql 50fa18ce-d532-4e3f-a30e-1fbc18670de6
select
    count(*),
    count(*) filter (where conversion_status = 'completed'),
    count(*) filter (where transcript_status = 'skipped'),
    count(*) filter (where transcript_status = 'failed'
        or download_status = 'failed'
        or analysis_status = 'failed'
        or conversion_status = 'failed'),
    count(*) filter (where transcript_status = 'pending')
from tasks;
`

const QInsertNoTranscript = `--sql 9dc96a80-70f9-4029-94c6-cfe91883b323
insert into no_transcript_videos (video_id, reason, created_at)
values ($1::text, $2::text, now())
on conflict (video_id) do update set reason = excluded.reason;
`
