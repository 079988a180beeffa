package compiler

import (
	"encoding/xml"

	"github.com/KevinKickass/ecconf/internal/records"
)

type handlerFunc func(s *parseState, f *frame, attrs []xml.Attr) error

var elementKinds = map[string]records.Kind{}

func init() {
	for k := records.KindMasters; k <= records.KindModParam; k++ {
		elementKinds[k.String()] = k
	}
}

// elementKind maps an element name to its context.
func elementKind(name string) (records.Kind, bool) {
	k, ok := elementKinds[name]
	return k, ok
}

// transition returns the handler for opening element el inside context
// ctx, or false if el may not appear there.
func transition(ctx, el records.Kind) (handlerFunc, bool) {
	switch el {
	case records.KindMasters:
		return (*parseState).parseMasters, ctx == records.KindNone
	case records.KindMaster:
		return (*parseState).parseMaster, ctx == records.KindMasters
	case records.KindSlave:
		return (*parseState).parseSlave, ctx == records.KindMaster
	case records.KindDcConf:
		return (*parseState).parseDcConf, ctx == records.KindSlave
	case records.KindWatchdog:
		return (*parseState).parseWatchdog, ctx == records.KindSlave
	case records.KindSdoConfig:
		return (*parseState).parseSdoConfig, ctx == records.KindSlave
	case records.KindSdoDataRaw:
		return (*parseState).parseDataRaw, ctx == records.KindSdoConfig
	case records.KindIdnConfig:
		return (*parseState).parseIdnConfig, ctx == records.KindSlave
	case records.KindIdnDataRaw:
		return (*parseState).parseDataRaw, ctx == records.KindIdnConfig
	case records.KindInitCmds:
		return (*parseState).parseInitCmds, ctx == records.KindSlave
	case records.KindSyncManager:
		return (*parseState).parseSyncManager, ctx == records.KindSlave
	case records.KindPdo:
		return (*parseState).parsePdo, ctx == records.KindSyncManager
	case records.KindPdoEntry:
		return (*parseState).parsePdoEntry, ctx == records.KindPdo
	case records.KindComplexEntry:
		return (*parseState).parseComplexEntry, ctx == records.KindPdoEntry
	case records.KindModParam:
		return (*parseState).parseModParam, ctx == records.KindSlave
	}
	return nil, false
}
