package storage

import "fmt"

// Key builders for each storage namespace. Kept centralised so every
// component constructs keys identically.

func MemoryKey(tenant, id string) string {
	return fmt.Sprintf("mindscape:%s:memory:%s", tenant, id)
}

func StratifyKey(tenant, agent string, layer string) string {
	return fmt.Sprintf("stratify:%s:%s:%s", tenant, agent, layer)
}

func SummaryKey(tenant, layer string) string {
	return fmt.Sprintf("summary:%s:%s", tenant, layer)
}

// LayerSummaryKey addresses the single latest summarisation result for a
// (tenant, layer) pair, distinct from SummaryKey's per-chunk content-hash cache.
func LayerSummaryKey(tenant, layer string) string {
	return fmt.Sprintf("layer_summary:%s:%s", tenant, layer)
}

func BeliefKey(tenant, id string) string {
	return fmt.Sprintf("gnosis:%s:belief:%s", tenant, id)
}

func BeliefVersionKey(tenant, id, versionID string) string {
	return fmt.Sprintf("gnosis:%s:belief:%s:version:%s", tenant, id, versionID)
}

func LifecycleKey(tenant, beliefID string) string {
	return fmt.Sprintf("lifecycle:%s:%s", tenant, beliefID)
}

func ConfidenceKey(tenant, beliefID string, ts int64) string {
	return fmt.Sprintf("confidence:%s:%s:%d", tenant, beliefID, ts)
}

func ConfidencePrefix(tenant, beliefID string) string {
	return fmt.Sprintf("confidence:%s:%s:", tenant, beliefID)
}

func ContradictionKey(tenant, cid string) string {
	return fmt.Sprintf("contradictions:%s:%s", tenant, cid)
}

func AdaptiveMemoryKey(tenant, id string) string {
	return fmt.Sprintf("adaptive_memory:%s:%s", tenant, id)
}

func AdaptiveConfigKey(tenant, field string) string {
	return fmt.Sprintf("adaptive_config:%s:%s", tenant, field)
}

func IdempotencyKey(tenant, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", tenant, key)
}

func JobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}

func AuditKey(tenant string, seq int64) string {
	return fmt.Sprintf("audit:%s:%d", tenant, seq)
}
