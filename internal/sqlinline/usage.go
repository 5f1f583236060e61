package sqlinline

// QReserveUsage increments the period counter only while the result stays
// within the organization's photo_limit. The conflict branch re-checks the
// ceiling against the locked row, so concurrent reservations serialize here.
const QReserveUsage = `--sql 99b08965-287c-4b71-9f33-b99700ccde08
with plan as (
    select photo_limit
    from organizations
    where id = $1::uuid
),
reserved as (
    insert into usage_periods (organization_id, period, used, succeeded, failed, updated_at)
    select $1::uuid, $2::text, $3::int, 0, 0, now()
    where (select photo_limit from plan) is null
       or $3::int <= (select photo_limit from plan)
    on conflict (organization_id, period) do update
        set used = usage_periods.used + excluded.used,
            updated_at = now()
        where (select photo_limit from plan) is null
           or usage_periods.used + excluded.used <= (select photo_limit from plan)
    returning used
)
select
    exists (select 1 from reserved) as allowed,
    coalesce(
        (select used from reserved),
        (select used from usage_periods where organization_id = $1::uuid and period = $2::text),
        0
    ) as used,
    (select photo_limit from plan) as photo_limit;
`

const QReleaseUsage = `--sql 5d9bb94d-ab22-48ff-a05b-e40febf2d138
update usage_periods
set used = greatest(used - $3::int, 0),
    updated_at = now()
where organization_id = $1::uuid
  and period = $2::text;
`

const QTrackUsage = `--sql 4d22b6ba-12f7-4829-b579-20a81ddad04a
insert into usage_periods (organization_id, period, used, succeeded, failed, updated_at)
values ($1::uuid, $2::text, 0, $3::int, $4::int, now())
on conflict (organization_id, period) do update
    set succeeded = usage_periods.succeeded + excluded.succeeded,
        failed = usage_periods.failed + excluded.failed,
        updated_at = now();
`
