// Command keytool seals the wallet private key for ethereum.encrypted_private_key.
//
//	keytool -new-master                 print a fresh base64 master key
//	CROWDFUND_MASTER_KEY=... CROWDFUND_PRIVATE_KEY=... keytool
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/chainsafe/crowdfund-client/pkg/keys"
)

func main() {
	newMaster := flag.Bool("new-master", false, "generate a new master key and exit")
	flag.Parse()

	if *newMaster {
		master, err := keys.GenerateMasterKey()
		if err != nil {
			exitf("%v", err)
		}
		fmt.Println(keys.MasterKeyToBase64(master))
		return
	}

	master, err := keys.MasterKeyFromBase64(os.Getenv("CROWDFUND_MASTER_KEY"))
	if err != nil {
		exitf("CROWDFUND_MASTER_KEY: %v", err)
	}
	raw, err := hexutil.Decode("0x" + strings.TrimPrefix(os.Getenv("CROWDFUND_PRIVATE_KEY"), "0x"))
	if err != nil {
		exitf("CROWDFUND_PRIVATE_KEY: %v", err)
	}
	sealed, err := keys.EncryptPrivateKey(raw, master)
	if err != nil {
		exitf("%v", err)
	}
	fmt.Println(sealed)
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
