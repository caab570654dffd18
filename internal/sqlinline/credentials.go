package sqlinline

const QSelectActiveCredentials = `--sql 8aa77092-b796-429e-9196-1c1b739277c9
select id, service, secret, coalesce(email, ''), coalesce(password, ''),
    status, usage_count, coalesce(disabled_reason, ''),
    coalesce(last_used, to_timestamp(0)), created_at, updated_at
from credentials
where service = $1::text and status = 'active'
order by last_used asc nulls first, id asc;
`

const QListCredentials = `--sql 36600767-42d7-4f57-ae4c-11d3ea2792ad
select id, service, secret, coalesce(email, ''), coalesce(password, ''),
    status, usage_count, coalesce(disabled_reason, ''),
    coalesce(last_used, to_timestamp(0)), created_at, updated_at
from credentials
order by service asc, id asc;
`

const QInsertCredential = `--sql f89ccf40-15ec-421e-8ff3-fc325d2f749b
insert into credentials (service, secret, email, password, status, usage_count, created_at, updated_at)
values ($1::text, $2::text, nullif($3::text, ''), nullif($4::text, ''), $5::text, 0, now(), now())
returning id;
`

const QDisableCredential = `--sql 9f7b2d25-196a-4515-a01d-89c0414ad384
update credentials
set status = 'disabled', disabled_reason = $2::text, updated_at = now()
where id = $1::bigint;
`

const QMarkCredentialUsed = `--sql e4ee95cc-6dfe-4048-b7d4-d8a55553d037
update credentials
set usage_count = usage_count + 1, last_used = now(), updated_at = now()
where id = $1::bigint;
`
