package peinfo

import (
	"fmt"
	"strings"

	"github.com/fkie-cad/malw/digest"
)

var winsockCommon = map[uint16]string{
	1:   "accept",
	2:   "bind",
	3:   "closesocket",
	4:   "connect",
	5:   "getpeername",
	6:   "getsockname",
	7:   "getsockopt",
	8:   "htonl",
	9:   "htons",
	10:  "ioctlsocket",
	11:  "inet_addr",
	12:  "inet_ntoa",
	13:  "listen",
	14:  "ntohl",
	15:  "ntohs",
	16:  "recv",
	17:  "recvfrom",
	18:  "select",
	19:  "send",
	20:  "sendto",
	21:  "setsockopt",
	22:  "shutdown",
	23:  "socket",
	51:  "gethostbyaddr",
	52:  "gethostbyname",
	53:  "getprotobyname",
	54:  "getprotobynumber",
	55:  "getservbyname",
	56:  "getservbyport",
	57:  "gethostname",
	101: "WSAAsyncSelect",
	102: "WSAAsyncGetHostByAddr",
	103: "WSAAsyncGetHostByName",
	104: "WSAAsyncGetProtoByNumber",
	105: "WSAAsyncGetProtoByName",
	106: "WSAAsyncGetServByPort",
	107: "WSAAsyncGetServByName",
	108: "WSACancelAsyncRequest",
	109: "WSASetBlockingHook",
	110: "WSAUnhookBlockingHook",
	111: "WSAGetLastError",
	112: "WSASetLastError",
	113: "WSACancelBlockingCall",
	114: "WSAIsBlocking",
	115: "WSAStartup",
	116: "WSACleanup",
	151: "__WSAFDIsSet",
}

var ws2Only = map[uint16]string{
	24:  "GetAddrInfoW",
	25:  "GetNameInfoW",
	26:  "WSApSetPostRoutine",
	27:  "FreeAddrInfoW",
	28:  "WPUCompleteOverlappedRequest",
	29:  "WSAAccept",
	30:  "WSAAddressToStringA",
	31:  "WSAAddressToStringW",
	32:  "WSACloseEvent",
	33:  "WSAConnect",
	34:  "WSACreateEvent",
	35:  "WSADuplicateSocketA",
	36:  "WSADuplicateSocketW",
	37:  "WSAEnumNameSpaceProvidersA",
	38:  "WSAEnumNameSpaceProvidersW",
	39:  "WSAEnumNetworkEvents",
	40:  "WSAEnumProtocolsA",
	41:  "WSAEnumProtocolsW",
	42:  "WSAEventSelect",
	43:  "WSAGetOverlappedResult",
	44:  "WSAGetQOSByName",
	45:  "WSAGetServiceClassInfoA",
	46:  "WSAGetServiceClassInfoW",
	47:  "WSAGetServiceClassNameByClassIdA",
	48:  "WSAGetServiceClassNameByClassIdW",
	49:  "WSAHtonl",
	50:  "WSAHtons",
	58:  "WSAInstallServiceClassA",
	59:  "WSAInstallServiceClassW",
	60:  "WSAIoctl",
	61:  "WSAJoinLeaf",
	62:  "WSALookupServiceBeginA",
	63:  "WSALookupServiceBeginW",
	64:  "WSALookupServiceEnd",
	65:  "WSALookupServiceNextA",
	66:  "WSALookupServiceNextW",
	67:  "WSANSPIoctl",
	68:  "WSANtohl",
	69:  "WSANtohs",
	70:  "WSAProviderConfigChange",
	71:  "WSARecv",
	72:  "WSARecvDisconnect",
	73:  "WSARecvFrom",
	74:  "WSARemoveServiceClass",
	75:  "WSAResetEvent",
	76:  "WSASend",
	77:  "WSASendDisconnect",
	78:  "WSASendTo",
	79:  "WSASetEvent",
	80:  "WSASetServiceA",
	81:  "WSASetServiceW",
	82:  "WSASocketA",
	83:  "WSASocketW",
	84:  "WSAStringToAddressA",
	85:  "WSAStringToAddressW",
	86:  "WSAWaitForMultipleEvents",
	87:  "WSCDeinstallProvider",
	88:  "WSCEnableNSProvider",
	89:  "WSCEnumProtocols",
	90:  "WSCGetProviderPath",
	91:  "WSCInstallNameSpace",
	92:  "WSCInstallProvider",
	93:  "WSCUnInstallNameSpace",
	94:  "WSCUpdateProvider",
	95:  "WSCWriteNameSpaceOrder",
	96:  "WSCWriteProviderOrder",
	97:  "freeaddrinfo",
	98:  "getaddrinfo",
	99:  "getnameinfo",
	500: "WEP",
}

var wsock32Only = map[uint16]string{
	1107: "WSARecvEx",
}

// LookupOrdinal resolves an ordinal import of a well known library to its
// symbol name.
func LookupOrdinal(library string, ordinal uint16) (string, bool) {
	var specific map[uint16]string
	switch strings.ToLower(library) {
	case "ws2_32.dll":
		specific = ws2Only
	case "wsock32.dll":
		specific = wsock32Only
	case "oleaut32.dll":
		name, ok := oleaut32Ordinals[ordinal]
		return name, ok
	default:
		return "", false
	}
	if name, ok := specific[ordinal]; ok {
		return name, true
	}
	name, ok := winsockCommon[ordinal]
	return name, ok
}

var imphashStrippedExtensions = map[string]bool{
	"dll": true,
	"ocx": true,
	"sys": true,
}

// Imphash computes the md5 import hash over the given import table. An
// empty table yields an empty hash.
func Imphash(imports ImportTable) string {
	entries := make([]string, 0)
	for _, imp := range imports {
		lib := strings.ToLower(imp.Library)
		if i := strings.LastIndex(lib, "."); i >= 0 && imphashStrippedExtensions[lib[i+1:]] {
			lib = lib[:i]
		}
		for _, sym := range imp.symbols {
			name := sym.name
			if sym.byOrdinal {
				var ok bool
				name, ok = LookupOrdinal(imp.Library, sym.ordinal)
				if !ok {
					name = fmt.Sprintf("ord%d", sym.ordinal)
				}
			}
			if name == "" {
				continue
			}
			entries = append(entries, lib+"."+strings.ToLower(name))
		}
	}
	if len(entries) == 0 {
		return ""
	}
	return digest.Bytes([]byte(strings.Join(entries, ",")), digest.MD5)
}
