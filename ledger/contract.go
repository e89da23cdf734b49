package ledger

// votingSystemABI describes the two VotingSystem contract methods this client
// uses: the append operation and the per-election read of the full log.
const votingSystemABI = `[
  {
    "type": "function",
    "name": "recordVote",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "electionId", "type": "uint256"},
      {"name": "authorizationString", "type": "string"},
      {"name": "voteData", "type": "string"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "getVotesByElectionId",
    "stateMutability": "view",
    "inputs": [
      {"name": "electionId", "type": "uint256"}
    ],
    "outputs": [
      {
        "name": "",
        "type": "tuple[]",
        "components": [
          {"name": "authorizationString", "type": "string"},
          {"name": "voteData", "type": "string"}
        ]
      }
    ]
  }
]`

// votingSystemVote mirrors the contract's vote tuple.
type votingSystemVote struct {
	AuthorizationString string
	VoteData            string
}
