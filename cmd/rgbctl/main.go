package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/eauxxs/rgb-std/pkg/checker"
	"github.com/eauxxs/rgb-std/pkg/containers"
	"github.com/eauxxs/rgb-std/pkg/contract"
	"github.com/eauxxs/rgb-std/pkg/iface"
	"github.com/eauxxs/rgb-std/pkg/inventory"
	"github.com/eauxxs/rgb-std/pkg/invoice"
	"github.com/eauxxs/rgb-std/pkg/resolver"
)

const usage = `usage:
  rgbctl stash init --stash <path>
  rgbctl contract import --stash <path> --consignment <path> [--force] [--resolver <url>]
  rgbctl contract export --stash <path> --contract <id> [--out <path>]
  rgbctl contract transfer --stash <path> --contract <id> [--output <chain:txid:vout>]... [--terminal <secret>]... [--out <path>]
  rgbctl contract list --stash <path> --iface <name>
  rgbctl transfer accept --stash <path> --consignment <path> [--force] [--resolver <url>]
  rgbctl compose --stash <path> --invoice <path> [--prev-output <chain:txid:vout>]... [--beneficiary-vout <n>] [--change-vout <n>] [--out <path>]
  rgbctl consume --stash <path> --fascia <path>`

type repeatStringFlag []string

func (r *repeatStringFlag) String() string { return strings.Join(*r, ",") }
func (r *repeatStringFlag) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	*r = append(*r, v)
	return nil
}

func main() {
	if len(os.Args) < 3 {
		fail(usage)
	}
	switch os.Args[1] + " " + os.Args[2] {
	case "stash init":
		runStashInit(os.Args[3:])
	case "contract import":
		runImport(os.Args[3:], false)
	case "contract export":
		runExport(os.Args[3:])
	case "contract transfer":
		runTransfer(os.Args[3:])
	case "contract list":
		runList(os.Args[3:])
	case "transfer accept":
		runImport(os.Args[3:], true)
	default:
		switch os.Args[1] {
		case "compose":
			runCompose(os.Args[2:])
		case "consume":
			runConsume(os.Args[2:])
		default:
			fail(usage)
		}
	}
}

func runStashInit(args []string) {
	fs := flag.NewFlagSet("stash init", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	stashPath := fs.String("stash", "", "path to stash snapshot")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	saveStash(*stashPath, inventory.NewMemStash())
	printResult(map[string]any{"stash": *stashPath})
}

func runImport(args []string, transfer bool) {
	name := "contract import"
	if transfer {
		name = "transfer accept"
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	stashPath := fs.String("stash", "", "path to stash snapshot")
	consignmentPath := fs.String("consignment", "", "path to consignment json")
	force := fs.Bool("force", false, "admit despite unresolved or unmined witnesses")
	resolverURL := fs.String("resolver", "https://blockstream.info/api", "esplora endpoint for witness resolution")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	var consignment containers.Consignment
	readJSONFile(*consignmentPath, &consignment)

	stash := loadStash(*stashPath)
	inv := newInventory(stash, *resolverURL)

	ctx := context.Background()
	var status any
	var err error
	switch {
	case transfer && *force:
		status, err = inv.AcceptTransferForce(ctx, consignment)
	case transfer:
		status, err = inv.AcceptTransfer(ctx, consignment)
	case *force:
		status, err = inv.ImportContractForce(ctx, consignment)
	default:
		status, err = inv.ImportContract(ctx, consignment)
	}
	if err != nil {
		fail(err.Error())
	}
	saveStash(*stashPath, stash)
	printResult(map[string]any{
		"contract_id": consignment.ContractID(),
		"status":      status,
	})
}

func runExport(args []string) {
	fs := flag.NewFlagSet("contract export", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	stashPath := fs.String("stash", "", "path to stash snapshot")
	contractHex := fs.String("contract", "", "contract id")
	outPath := fs.String("out", "", "write consignment here instead of stdout")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	stash := loadStash(*stashPath)
	inv := newInventory(stash, "")
	consignment, err := inv.ExportContract(context.Background(), parseContractID(*contractHex))
	if err != nil {
		fail(err.Error())
	}
	emitJSON(*outPath, consignment)
}

func runTransfer(args []string) {
	fs := flag.NewFlagSet("contract transfer", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	stashPath := fs.String("stash", "", "path to stash snapshot")
	contractHex := fs.String("contract", "", "contract id")
	outPath := fs.String("out", "", "write consignment here instead of stdout")
	var outputFlags, terminalFlags repeatStringFlag
	fs.Var(&outputFlags, "output", "disclosed output as chain:txid:vout (repeatable)")
	fs.Var(&terminalFlags, "terminal", "terminal secret seal (repeatable)")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	outputs := make([]contract.OutputSeal, 0, len(outputFlags))
	for _, raw := range outputFlags {
		outputs = append(outputs, parseOutput(raw))
	}
	terminals := make([]contract.SecretSeal, 0, len(terminalFlags))
	for _, raw := range terminalFlags {
		var secret contract.SecretSeal
		if err := secret.UnmarshalText([]byte(raw)); err != nil {
			fail("malformed terminal secret: " + err.Error())
		}
		terminals = append(terminals, secret)
	}

	stash := loadStash(*stashPath)
	inv := newInventory(stash, "")
	consignment, err := inv.Transfer(context.Background(), parseContractID(*contractHex), outputs, terminals)
	if err != nil {
		fail(err.Error())
	}
	emitJSON(*outPath, consignment)
}

func runList(args []string) {
	fs := flag.NewFlagSet("contract list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	stashPath := fs.String("stash", "", "path to stash snapshot")
	ifaceName := fs.String("iface", "", "interface name")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	stash := loadStash(*stashPath)
	inv := newInventory(stash, "")
	ids, err := inv.ContractsByIfaceName(context.Background(), *ifaceName)
	if err != nil {
		fail(err.Error())
	}
	printResult(map[string]any{"contracts": ids})
}

func runCompose(args []string) {
	fs := flag.NewFlagSet("compose", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	stashPath := fs.String("stash", "", "path to stash snapshot")
	invoicePath := fs.String("invoice", "", "path to invoice json")
	outPath := fs.String("out", "", "write batch here instead of stdout")
	beneficiaryVout := fs.Int("beneficiary-vout", -1, "witness vout paying the beneficiary")
	changeVout := fs.Int("change-vout", -1, "witness vout receiving change and blank state")
	var prevOutputFlags repeatStringFlag
	fs.Var(&prevOutputFlags, "prev-output", "spent output as chain:txid:vout (repeatable)")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	var in invoice.Invoice
	readJSONFile(*invoicePath, &in)

	prevOutputs := make([]contract.OutputSeal, 0, len(prevOutputFlags))
	for _, raw := range prevOutputFlags {
		prevOutputs = append(prevOutputs, parseOutput(raw))
	}
	var beneficiary *contract.Vout
	if *beneficiaryVout >= 0 {
		vout := contract.Vout(*beneficiaryVout)
		beneficiary = &vout
	}
	allocator := func(contract.ContractID, contract.AssignmentType, iface.VelocityHint) (contract.Vout, bool) {
		if *changeVout < 0 {
			return 0, false
		}
		return contract.Vout(*changeVout), true
	}

	stash := loadStash(*stashPath)
	inv := newInventory(stash, "")
	batch, err := inv.Compose(context.Background(), in, prevOutputs, beneficiary, allocator)
	if err != nil {
		fail(err.Error())
	}
	emitJSON(*outPath, batch)
}

func runConsume(args []string) {
	fs := flag.NewFlagSet("consume", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	stashPath := fs.String("stash", "", "path to stash snapshot")
	fasciaPath := fs.String("fascia", "", "path to fascia json")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	var fascia containers.Fascia
	readJSONFile(*fasciaPath, &fascia)

	stash := loadStash(*stashPath)
	inv := newInventory(stash, "")
	if err := inv.Consume(context.Background(), fascia); err != nil {
		fail(err.Error())
	}
	saveStash(*stashPath, stash)
	printResult(map[string]any{"witness": fascia.Witness.WitnessID})
}

func newInventory(stash *inventory.MemStash, resolverURL string) *inventory.Inventory {
	endpoints := map[contract.Chain]string{}
	if resolverURL != "" {
		endpoints[contract.ChainBitcoin] = resolverURL
	}
	chain := resolver.NewHTTP(endpoints)
	return inventory.New(stash, chain, checker.New(chain, containers.DefaultBounds()))
}

func loadStash(path string) *inventory.MemStash {
	if strings.TrimSpace(path) == "" {
		fail("--stash is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fail("read stash failed: " + err.Error())
	}
	stash := inventory.NewMemStash()
	if err := stash.LoadSnapshot(data); err != nil {
		fail("load stash failed: " + err.Error())
	}
	return stash
}

func saveStash(path string, stash *inventory.MemStash) {
	if strings.TrimSpace(path) == "" {
		fail("--stash is required")
	}
	data, err := stash.Snapshot()
	if err != nil {
		fail("snapshot stash failed: " + err.Error())
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		fail("write stash failed: " + err.Error())
	}
}

func parseContractID(raw string) contract.ContractID {
	var id contract.ContractID
	if err := id.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		fail("malformed contract id: " + err.Error())
	}
	return id
}

func parseOutput(raw string) contract.OutputSeal {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		fail("malformed output " + raw + ", want chain:txid:vout")
	}
	var seal contract.OutputSeal
	switch parts[0] {
	case "bitcoin":
		seal.Chain = contract.ChainBitcoin
	case "liquid":
		seal.Chain = contract.ChainLiquid
	default:
		fail("unknown chain " + parts[0])
	}
	if err := seal.Txid.UnmarshalText([]byte(parts[1])); err != nil {
		fail("malformed output txid: " + err.Error())
	}
	vout, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		fail("malformed output vout: " + err.Error())
	}
	seal.Vout = contract.Vout(vout)
	return seal
}

func readJSONFile(path string, dst any) {
	if strings.TrimSpace(path) == "" {
		fail("input path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fail("read failed: " + err.Error())
	}
	if err := json.Unmarshal(data, dst); err != nil {
		fail("decode failed: " + err.Error())
	}
}

func emitJSON(outPath string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail("encode failed: " + err.Error())
	}
	if strings.TrimSpace(outPath) == "" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		fail("write failed: " + err.Error())
	}
	printResult(map[string]any{"out": outPath})
}

func printResult(v map[string]any) {
	v["result"] = "ok"
	data, err := json.Marshal(v)
	if err != nil {
		fail("encode failed: " + err.Error())
	}
	fmt.Println(string(data))
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
