package sqlinline

const QInsertArtifact = `--sql e58f4678-d041-4d7d-87ed-e09740139b63
insert into artifacts (video_id, filename, title, description, duration, storage_key, public_url, created_at)
values ($1::text, $2::text, $3::text, $4::text, $5::double precision, $6::text, $7::text, now())
returning id;
`

const QListArtifacts = `--sql f42ac6d1-d9f4-4d82-be10-5bd0508bc060
select id, video_id, filename, title, description, duration, storage_key, public_url, created_at
from artifacts
order by created_at desc
limit $1 offset $2;
`
