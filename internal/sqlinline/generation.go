package sqlinline

const QInsertGenerationJob = `--sql 1c29eecf-6d27-49ea-a92b-4d3d48b0d7d2
insert into generation_jobs (
    id, kind, organization_id, product_id, image_types, total, completed, failed, status, created_at, started_at
)
values ($1::uuid, $6::text, $2::uuid, $3::text, $4::text[], $5::int, 0, 0, 'processing', now(), now())
returning created_at, started_at;
`

const QUpdateGenerationJob = `--sql 34f88757-7452-41b0-8ded-6e49c8798f3a
update generation_jobs
set completed = $2::int,
    failed = $3::int,
    status = $4::text,
    completed_at = $5::timestamptz,
    updated_at = now()
where id = $1::uuid;
`

const QSelectGenerationJob = `--sql 0ab3c52d-e86f-423f-91ed-2233ff3b290d
select id, kind, organization_id, product_id, image_types, total, completed, failed, status, created_at, started_at, completed_at
from generation_jobs
where id = $1::uuid
  and organization_id = $2::uuid
limit 1;
`

const QHasActiveGenerationJob = `--sql 437afc29-5d7f-4d4a-b063-739f8dc44435
select exists (
    select 1
    from generation_jobs
    where organization_id = $1::uuid
      and kind = 'batch'
      and status = 'processing'
);
`

const QFailStaleGenerationJobs = `--sql 21abdcc9-50e3-4ba1-92a0-a490dd051bc7
update generation_jobs
set status = 'failed',
    failed = total - completed,
    completed_at = now(),
    updated_at = now()
where status = 'processing'
  and started_at < $1::timestamptz;
`

const QInsertGeneratedImage = `--sql 2435d6c3-50d2-4b61-844e-60bb81f6e521
insert into generated_images (
    id, organization_id, product_id, job_id, source_image_id, source_image_url, parent_image_id,
    image_type, status, url, prompt, seed, temperature, duration_ms, review_status, error_message, created_at
)
values (
    gen_random_uuid(), $1::uuid, $2::text, nullif($3::text, '')::uuid, nullif($4::text, ''), $5::text, $6::uuid,
    $7::text, $8::text, $9::text, $10::text, $11::bigint, $12::double precision, $13::bigint, 'pending', nullif($14::text, ''), now()
)
returning id;
`
