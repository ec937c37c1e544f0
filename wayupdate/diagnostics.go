package wayupdate

import "github.com/omniscale/osmdelta/log"

// The diag* functions below are the non-fatal error taxonomy of §7: emitted
// to the log and otherwise swallowed so the batch can continue.

func diagMissingNode(node NodeId, way WayId) {
	log.Printf("[warn] way %d: node %d not found, coordinate omitted", way, node)
}

func diagMissingSkeleton(way WayId) {
	log.Printf("[warn] way %d: listed in existing positions but has no current skeleton", way)
}

func diagAtticCollision(way WayId, t Timestamp) {
	log.Printf("[warn] way %d has changed at timestamp %d in two different diffs", way, t)
}
