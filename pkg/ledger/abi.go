package ledger

// podaABIJSON is the PoDA ledger contract's ABI, covering exactly the calls
// listed in the external ledger interface. Merkle proofs are passed as two
// parallel arrays (siblings, rightFlags) since Solidity has no tuple-array
// literal convenient for ABI packing from Go without a generated binding.
const podaABIJSON = `[
  {"type":"function","name":"registerProvider","stateMutability":"payable",
   "inputs":[{"name":"name","type":"string"},{"name":"url","type":"string"},{"name":"stake","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"submitCommitment","stateMutability":"nonpayable",
   "inputs":[{"name":"root","type":"bytes32"},{"name":"size","type":"uint32"},
             {"name":"n","type":"uint16"},{"name":"k","type":"uint16"},{"name":"kzg","type":"bytes"}],
   "outputs":[]},
  {"type":"function","name":"submitChunkAttestations","stateMutability":"nonpayable",
   "inputs":[{"name":"root","type":"bytes32"},{"name":"indices","type":"uint16[]"}],
   "outputs":[]},
  {"type":"function","name":"getCommitmentInfo","stateMutability":"view",
   "inputs":[{"name":"root","type":"bytes32"}],
   "outputs":[{"name":"size","type":"uint32"},{"name":"n","type":"uint16"},{"name":"k","type":"uint16"},
              {"name":"kzg","type":"bytes"},{"name":"availableChunks","type":"uint32"},
              {"name":"exists","type":"bool"}]},
  {"type":"function","name":"getProviderChunks","stateMutability":"view",
   "inputs":[{"name":"root","type":"bytes32"},{"name":"addr","type":"address"}],
   "outputs":[{"name":"indices","type":"uint16[]"}]},
  {"type":"function","name":"getChunkOwner","stateMutability":"view",
   "inputs":[{"name":"root","type":"bytes32"},{"name":"index","type":"uint16"}],
   "outputs":[{"name":"addr","type":"address"},{"name":"owned","type":"bool"}]},
  {"type":"function","name":"isChunkAvailable","stateMutability":"view",
   "inputs":[{"name":"root","type":"bytes32"},{"name":"index","type":"uint16"}],
   "outputs":[{"name":"available","type":"bool"}]},
  {"type":"function","name":"getCommitmentList","stateMutability":"view",
   "inputs":[], "outputs":[{"name":"roots","type":"bytes32[]"}]},
  {"type":"function","name":"getActiveProviders","stateMutability":"view",
   "inputs":[], "outputs":[{"name":"addrs","type":"address[]"}]},
  {"type":"function","name":"getProviderStake","stateMutability":"view",
   "inputs":[{"name":"addr","type":"address"}], "outputs":[{"name":"stake","type":"uint256"}]},
  {"type":"function","name":"issueChunkChallenge","stateMutability":"nonpayable",
   "inputs":[{"name":"root","type":"bytes32"},{"name":"index","type":"uint16"},{"name":"provider","type":"address"}],
   "outputs":[{"name":"challengeId","type":"bytes32"}]},
  {"type":"function","name":"respondToChunkChallenge","stateMutability":"nonpayable",
   "inputs":[{"name":"root","type":"bytes32"},{"name":"index","type":"uint16"},{"name":"data","type":"bytes"},
             {"name":"siblings","type":"bytes32[]"},{"name":"rightFlags","type":"bool[]"}],
   "outputs":[]},
  {"type":"function","name":"getChunkChallenge","stateMutability":"view",
   "inputs":[{"name":"root","type":"bytes32"},{"name":"index","type":"uint16"},{"name":"provider","type":"address"}],
   "outputs":[{"name":"challengeId","type":"bytes32"},{"name":"deadline","type":"uint64"},
              {"name":"state","type":"uint8"},{"name":"exists","type":"bool"}]},
  {"type":"function","name":"getProviderActiveChallenges","stateMutability":"view",
   "inputs":[{"name":"addr","type":"address"}],
   "outputs":[{"name":"roots","type":"bytes32[]"},{"name":"indices","type":"uint16[]"}]},
  {"type":"function","name":"getProviderExpiredChallenges","stateMutability":"view",
   "inputs":[{"name":"addr","type":"address"}],
   "outputs":[{"name":"roots","type":"bytes32[]"},{"name":"indices","type":"uint16[]"},{"name":"providers","type":"address[]"}]},
  {"type":"function","name":"slashExpiredChallenge","stateMutability":"nonpayable",
   "inputs":[{"name":"root","type":"bytes32"},{"name":"index","type":"uint16"},{"name":"provider","type":"address"}],
   "outputs":[]},
  {"type":"function","name":"verifyChunkProof","stateMutability":"view",
   "inputs":[{"name":"siblings","type":"bytes32[]"},{"name":"rightFlags","type":"bool[]"},
             {"name":"root","type":"bytes32"},{"name":"index","type":"uint16"},{"name":"data","type":"bytes"}],
   "outputs":[{"name":"valid","type":"bool"}]}
]`
