package sqlinline

const QSelectIntegrationToken = `--sql c1f9a7d4-52e3-48b1-9b6a-0d8f3e21c7a5
select token
from integration_tokens
where provider = $1
limit 1;
`

const QUpsertIntegrationToken = `--sql 4e7b2c90-8d1f-4a36-b5e2-6f90a4d813bc
insert into integration_tokens (provider, token, properties)
values ($1, $2, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
