package session

import (
	"strings"
	"unicode"
)

// Command names understood by the server.
const (
	CmdOpen    = "open"
	CmdStart   = "start"
	CmdCredit  = "credit"
	CmdDebit   = "debit"
	CmdBalance = "balance"
	CmdFinish  = "finish"
	CmdExit    = "exit"
)

// Reply lines.  Formats take the account name and, where relevant, an
// amount rendered with two decimals.
const (
	fmtCreated   = "Account successfully created - %s"
	fmtReopened  = "%s session reopened"
	fmtNewBal    = "%s new balance: %s"
	fmtCurBal    = "%s current balance: %s"
	fmtFinished  = "%s transactions finished"
	fmtBadAmount = "Invalid amount: %s"

	msgAlreadyOpen   = "Command Error: Session is already opened"
	msgNeedName      = "Command Error: Please provide a name"
	msgNeedAcctName  = "Command Error: Please provide an account name"
	msgExists        = "Command Error: Account name already exists. Try start command"
	msgNoResources   = "Command Error: Unable to allocate resources"
	msgNameTooLong   = "Command Error: Account name is too long"
	msgAmountTooBig  = "Command Error: Amount is too large"
	msgSessionLost   = "Command Error: Account session has ended"
	msgNotFound      = "Account not found"
	msgLocked        = "Account is locked by another user"
	msgCreditUnbound = "Start or open an account before using credit function"
	msgDebitUnbound  = "Start or open an account before using debit function"
	msgBalUnbound    = "Start or open an account before using balance function"
	msgNeedCredit    = "Please enter an amount to credit"
	msgNeedDebit     = "Please enter an amount to debit"
	msgOverdraft     = "Overdraft is not allowed for this account"
	msgNoFinish      = "No open account to finish"
	msgGoodbye       = "Have a good day"
	msgUnknown       = "I don't understand that command!!!"

	// MsgShuttingDown answers commands that reach a closed store, and is
	// the last line a client sees when the server stops.
	MsgShuttingDown = "Command Error: Bank is shutting down"

	// MsgLineTooLong answers a request line over the configured limit.
	MsgLineTooLong = "Command Error: Input line is too long"

	// MsgBusy is sent to a connection turned away because every worker
	// slot is taken.
	MsgBusy = "Server is busy, maximum number of sessions reached"
)

// splitCommand separates the command word from its argument.  The
// argument is the rest of the line with surrounding space trimmed, so
// account names may contain inner spaces.
func splitCommand(line string) (cmd, arg string) {
	line = strings.TrimSpace(line)
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i:])
}
