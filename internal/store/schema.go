package store

// SchemaSQL defines the conversation and message tables. conversation is
// SCHEMAFULL because its shape is fixed and small; message is FLEXIBLE on
// its edge fields because parent_ids/children are append-only arrays that
// grow as a DAG branches and merges, and a strict array<string> length
// check buys nothing here.
const SchemaSQL = `
    -- ==========================================================================
    -- CONVERSATION TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON conversation TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS models ON conversation TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS created_at ON conversation TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON conversation TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS conversation_user ON conversation FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS conversation_updated ON conversation FIELDS updated_at;

    -- ==========================================================================
    -- MESSAGE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS conversation_id ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS role ON message TYPE string ASSERT $value IN ['user', 'assistant'];
    DEFINE FIELD IF NOT EXISTS content ON message TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS reasoning ON message TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS model ON message TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS parent_ids ON message TYPE array<string> DEFAULT [];
    REMOVE FIELD IF EXISTS parent_ids.* ON message;
    DEFINE FIELD parent_ids.* ON message TYPE string FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS children ON message TYPE array<string> DEFAULT [];
    REMOVE FIELD IF EXISTS children.* ON message;
    DEFINE FIELD children.* ON message TYPE string FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON message TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS message_conversation ON message FIELDS conversation_id;
    DEFINE INDEX IF NOT EXISTS message_created ON message FIELDS created_at;
`
