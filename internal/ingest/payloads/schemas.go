package payloads

// Avro schemas for every topic and schema version. Later versions only add
// fields with defaults, so older producers stay decodable.

const voteSchemaV1 = `{
  "namespace": "brave.payments",
  "type": "record",
  "name": "vote",
  "fields": [
    {"name": "id", "type": "string"},
    {"name": "type", "type": "string"},
    {"name": "channel", "type": "string"},
    {"name": "createdAt", "type": "string"}
  ]
}`

const voteSchemaV2 = `{
  "namespace": "brave.payments",
  "type": "record",
  "name": "vote",
  "fields": [
    {"name": "id", "type": "string"},
    {"name": "type", "type": "string"},
    {"name": "channel", "type": "string"},
    {"name": "createdAt", "type": "string"},
    {"name": "baseVoteValue", "type": "string", "default": "0.25"},
    {"name": "voteTally", "type": "long", "default": 1},
    {"name": "fundingSource", "type": "string", "default": "uphold"}
  ]
}`

const suggestionSchemaV1 = `{
  "namespace": "brave.grants",
  "type": "record",
  "name": "suggestion",
  "fields": [
    {"name": "id", "type": "string"},
    {"name": "type", "type": "string"},
    {"name": "channel", "type": "string"},
    {"name": "createdAt", "type": "string"},
    {"name": "totalAmount", "type": "string"},
    {"name": "funding", "type": {"type": "array", "items": {
      "type": "record",
      "name": "funding",
      "fields": [
        {"name": "type", "type": "string"},
        {"name": "amount", "type": "string"},
        {"name": "cohort", "type": "string"},
        {"name": "promotion", "type": "string"}
      ]
    }}}
  ]
}`

const settlementSchemaV1 = `{
  "namespace": "brave.payments",
  "type": "record",
  "name": "payout",
  "fields": [
    {"name": "id", "type": "string"},
    {"name": "address", "type": "string"},
    {"name": "settlementId", "type": "string"},
    {"name": "publisher", "type": "string"},
    {"name": "altcurrency", "type": "string"},
    {"name": "currency", "type": "string"},
    {"name": "createdAt", "type": "string"},
    {"name": "owner", "type": "string"},
    {"name": "probi", "type": "string"},
    {"name": "fees", "type": "string"},
    {"name": "type", "type": "string"}
  ]
}`

const settlementSchemaV2 = `{
  "namespace": "brave.payments",
  "type": "record",
  "name": "payout",
  "fields": [
    {"name": "id", "type": "string"},
    {"name": "address", "type": "string"},
    {"name": "settlementId", "type": "string"},
    {"name": "publisher", "type": "string"},
    {"name": "altcurrency", "type": "string"},
    {"name": "currency", "type": "string"},
    {"name": "createdAt", "type": "string"},
    {"name": "owner", "type": "string"},
    {"name": "probi", "type": "string"},
    {"name": "fees", "type": "string", "default": "0"},
    {"name": "type", "type": "string"},
    {"name": "documentId", "type": "string", "default": ""},
    {"name": "amount", "type": "string", "default": ""}
  ]
}`

const referralSchemaV1 = `{
  "namespace": "brave.payments",
  "type": "record",
  "name": "referral",
  "fields": [
    {"name": "id", "type": "string"},
    {"name": "transactionId", "type": "string"},
    {"name": "publisher", "type": "string"},
    {"name": "owner", "type": "string"},
    {"name": "altcurrency", "type": "string"},
    {"name": "createdAt", "type": "string"},
    {"name": "inputs", "type": {"type": "array", "items": {
      "type": "record",
      "name": "inputs",
      "fields": [
        {"name": "finalized", "type": "string"},
        {"name": "referralCode", "type": "string"},
        {"name": "downloadId", "type": "string"},
        {"name": "downloadTimestamp", "type": "string"},
        {"name": "countryGroupId", "type": "string"},
        {"name": "platform", "type": "string"},
        {"name": "payoutRate", "type": "string"},
        {"name": "probi", "type": "string"}
      ]
    }}}
  ]
}`

const referralSchemaV2 = `{
  "namespace": "brave.payments",
  "type": "record",
  "name": "referral",
  "fields": [
    {"name": "id", "type": "string"},
    {"name": "transactionId", "type": "string"},
    {"name": "publisher", "type": "string"},
    {"name": "owner", "type": "string"},
    {"name": "altcurrency", "type": "string"},
    {"name": "createdAt", "type": "string"},
    {"name": "inputs", "type": {"type": "array", "items": {
      "type": "record",
      "name": "inputs",
      "fields": [
        {"name": "finalized", "type": "string"},
        {"name": "referralCode", "type": "string"},
        {"name": "downloadId", "type": "string"},
        {"name": "downloadTimestamp", "type": "string"},
        {"name": "countryGroupId", "type": "string"},
        {"name": "platform", "type": "string"},
        {"name": "payoutRate", "type": "string"},
        {"name": "probi", "type": "string"}
      ]
    }}},
    {"name": "currency", "type": "string", "default": "USD"}
  ]
}`

const adPayoutSchemaV1 = `{
  "namespace": "brave.ads",
  "type": "record",
  "name": "payout",
  "fields": [
    {"name": "id", "type": "string"},
    {"name": "paymentId", "type": "string"},
    {"name": "tokenId", "type": "string"},
    {"name": "amount", "type": "string"},
    {"name": "currency", "type": "string", "default": "BAT"},
    {"name": "createdAt", "type": "string"}
  ]
}`
